package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("admin:snapshot_warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("audit:retention_purge").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("admin:snapshot_warmup", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("audit:retention_purge", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("audit:retention_purge")))
}

func TestAddAffectedIgnoresEmptyRuns(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddAffected("audit:retention_purge", 0)
	m.AddAffected("audit:retention_purge", 12)
	require.Equal(t, 12.0, testutil.ToFloat64(m.affected.WithLabelValues("audit:retention_purge")))

	var nilMetrics *Metrics
	nilMetrics.AddAffected("x", 3)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
