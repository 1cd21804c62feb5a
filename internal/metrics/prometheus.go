// Package metrics provides Prometheus metrics for the mesh pipeline and the
// STEP converter backends.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	PipelineInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadmesh_pipeline_invocations_total",
			Help: "Total number of pipeline invocations",
		},
		[]string{"format", "status"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadmesh_pipeline_duration_seconds",
			Help:    "Time taken to process one input file",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"format"},
	)

	TrianglesOut = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadmesh_output_triangles",
			Help:    "Triangle count of the final mesh",
			Buckets: []float64{12, 50, 100, 250, 500, 1000, 10000, 100000},
		},
	)

	SimplifyFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadmesh_simplify_fallbacks_total",
			Help: "Simplifications that returned the original mesh",
		},
	)

	AnalysisFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadmesh_analysis_fallbacks_total",
			Help: "Analyses that returned the unit box fallback",
		},
	)

	// STEP conversion metrics
	StepConversions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadmesh_step_conversions_total",
			Help: "Total number of STEP conversion attempts",
		},
		[]string{"backend", "status"},
	)

	StepConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadmesh_step_conversion_duration_seconds",
			Help:    "Duration of STEP conversions",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"backend"},
	)
)

// RecordPipeline records one pipeline invocation.
func RecordPipeline(format, status string, duration time.Duration) {
	PipelineInvocations.WithLabelValues(format, status).Inc()
	PipelineDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// Timer is a helper for measuring duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
