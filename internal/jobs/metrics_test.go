package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("sweep").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("sweep").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sweep", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("sweep", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("sweep")))
}

func TestAddOverdue(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddOverdue(0)
	m.AddOverdue(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.overdue))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.AddOverdue(1)
		_ = nilMetrics.Track("sweep").End(nil)
	})
}
