package cadmesh

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flywave/go-cadmesh/internal/metrics"
	"go.uber.org/zap"
)

// StepConverter tessellates a STEP file into a mesh file that one of the
// FormatReaders can load.
type StepConverter interface {
	// Name identifies the backend in logs, metrics and errors.
	Name() string
	// Probe reports whether the backend can currently accept work.
	Probe(ctx context.Context) error
	// Convert writes a format ("stl" or "obj") artifact into outDir. On
	// failure no partial artifact is left behind.
	Convert(ctx context.Context, stepPath, format, outDir string) (*ConversionArtifact, error)
}

// ConversionArtifact is a converter output file.
type ConversionArtifact struct {
	Path    string
	Format  string
	Backend string
}

// Capabilities is the outcome of probing STEP backends once at startup.
// StepConverters holds the usable backends in priority order.
type Capabilities struct {
	StepConverters []StepConverter
	Unavailable    map[string]error
	// Placeholder substitutes a unit cube for STEP input when no backend is
	// available instead of failing.
	Placeholder bool
}

// ProbeCapabilities probes every candidate and keeps the ones that answer.
func ProbeCapabilities(ctx context.Context, candidates []StepConverter, log *zap.Logger) *Capabilities {
	if log == nil {
		log = zap.NewNop()
	}
	caps := &Capabilities{Unavailable: make(map[string]error)}
	for _, c := range candidates {
		if err := c.Probe(ctx); err != nil {
			caps.Unavailable[c.Name()] = err
			log.Warn("step backend unavailable", zap.String("backend", c.Name()), zap.Error(err))
			continue
		}
		log.Info("step backend available", zap.String("backend", c.Name()))
		caps.StepConverters = append(caps.StepConverters, c)
	}
	return caps
}

// HasStep reports whether at least one STEP backend is usable.
func (c *Capabilities) HasStep() bool {
	return c != nil && len(c.StepConverters) > 0
}

// BackendNames lists the usable backends in priority order.
func (c *Capabilities) BackendNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.StepConverters))
	for i, sc := range c.StepConverters {
		names[i] = sc.Name()
	}
	return names
}

func (c *Capabilities) unavailableError(path string) *Error {
	var cause error
	if c != nil && len(c.Unavailable) > 0 {
		parts := make([]string, 0, len(c.Unavailable))
		for name, err := range c.Unavailable {
			parts = append(parts, fmt.Sprintf("%s: %v", name, err))
		}
		cause = errors.New(strings.Join(parts, "; "))
	}
	return &Error{
		Kind:        ErrBackendUnavailable,
		Op:          "convert",
		Path:        path,
		Err:         cause,
		Remediation: stepRemediation,
	}
}

// Convert runs the available backends in order. A backend that fails hands
// over to the next one; a timeout or cancellation ends the attempt.
func (c *Capabilities) Convert(ctx context.Context, stepPath, format, outDir string, log *zap.Logger) (*ConversionArtifact, error) {
	if !c.HasStep() {
		return nil, c.unavailableError(stepPath)
	}
	if log == nil {
		log = zap.NewNop()
	}
	var last error
	for _, sc := range c.StepConverters {
		log.Info("converting step file", zap.String("backend", sc.Name()), zap.String("path", stepPath))
		start := time.Now()
		art, err := sc.Convert(ctx, stepPath, format, outDir)
		metrics.StepConversions.WithLabelValues(sc.Name(), KindName(err)).Inc()
		metrics.StepConversionDuration.WithLabelValues(sc.Name()).Observe(time.Since(start).Seconds())
		if err == nil {
			return art, nil
		}
		last = err
		if errors.Is(err, ErrConversionTimeout) || ctx.Err() != nil {
			return nil, err
		}
		log.Warn("step backend failed, trying next", zap.String("backend", sc.Name()), zap.Error(err))
	}
	return nil, last
}
