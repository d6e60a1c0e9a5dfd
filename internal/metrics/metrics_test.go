package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Run(ResultOK, 2*time.Second)
	m.Item("okc", OutcomeSeen)
	m.Item("okc", OutcomeSeen)
	m.Item("okc", OutcomeCreated)
	m.FetchError("tulsa")
	m.Generation(false)
	m.Generation(true)
	m.Generation(true)
	m.Transition("publish", nil)
	m.Transition("publish", errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(ResultOK)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues("okc", OutcomeSeen)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("okc", OutcomeCreated)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors.WithLabelValues("tulsa")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.generation.WithLabelValues(ResultOK)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.generation.WithLabelValues(ResultFallback)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("publish", ResultFailed)))

	n, err := testutil.GatherAndCount(reg, "ingest_run_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	require.NotPanics(t, func() {
		m.Run(ResultFailed, time.Second)
		m.Item("x", OutcomeError)
		m.FetchError("x")
		m.Generation(true)
		m.Transition("reject", nil)
	})
}
