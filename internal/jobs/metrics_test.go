package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	tracker := m.Track("stock:reconcile")
	tracker.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	require.NoError(t, tracker.End(nil))

	err := m.Track("stock:reconcile").End(errors.New("boom"))
	require.EqualError(t, err, "boom")

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:reconcile", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("stock:reconcile", "failure")))
	require.Equal(t, 1_700_000_000.0, testutil.ToFloat64(m.lastSuccess.WithLabelValues("stock:reconcile")))
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestCountersIgnoreNilAndZero(t *testing.T) {
	var nilMetrics *Metrics
	nilMetrics.AddDiscrepancies("drift", 3)
	nilMetrics.AddPurged(2)
	require.NoError(t, nilMetrics.Track("x").End(nil))

	m := NewMetrics(prometheus.NewRegistry())
	m.AddDiscrepancies("drift", 0)
	m.AddDiscrepancies("negative", 2)
	m.AddPurged(5)
	m.AddPurged(-1)
	require.Equal(t, 0.0, testutil.ToFloat64(m.discrepancies.WithLabelValues("drift")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.discrepancies.WithLabelValues("negative")))
	require.Equal(t, 5.0, testutil.ToFloat64(m.purged))
}

func TestNilRegistererSharesDefaultSet(t *testing.T) {
	require.Same(t, NewMetrics(nil), NewMetrics(nil))
}
