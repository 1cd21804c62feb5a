package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordPipeline(t *testing.T) {
	counter := PipelineInvocations.WithLabelValues("stl", "ok")
	before := testutil.ToFloat64(counter)

	RecordPipeline("stl", "ok", 250*time.Millisecond)
	RecordPipeline("stl", "ok", time.Second)

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
	assert.Equal(t, 0.0, testutil.ToFloat64(PipelineInvocations.WithLabelValues("obj", "load_error")))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), 5*time.Millisecond)
}
