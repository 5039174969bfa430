package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/regwatch/internal/metrics"
	"github.com/jonesrussell/north-cloud/regwatch/internal/monitor"
)

func TestMetrics_ObserveSource(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObserveSource(monitor.OutcomeChanged, true, 2*time.Second)
	m.ObserveSource(monitor.OutcomeChanged, false, time.Second)
	m.ObserveSource(monitor.OutcomeUnchanged, false, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(m.SourcesProcessed.WithLabelValues("changed", "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SourcesProcessed.WithLabelValues("changed", "false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SourcesProcessed.WithLabelValues("unchanged", "false")), 0)
}

func TestMetrics_ObserveRun(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	finished := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	m.ObserveRun(&monitor.RunSummary{
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Results: []monitor.Result{
			{Outcome: monitor.OutcomeError},
			{Outcome: monitor.OutcomeInserted},
		},
	})
	m.ParseFailure()

	assert.InDelta(t, 1, testutil.ToFloat64(m.RunsTotal), 0)
	assert.InDelta(t, float64(finished.Unix()), testutil.ToFloat64(m.LastRun), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LastRunError), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ParseFailures), 0)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObserveSource(monitor.OutcomeInserted, false, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `regwatch_sources_processed_total{meaningful="false",outcome="inserted"} 1`))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a, b := metrics.New(), metrics.New()
	a.ParseFailure()
	assert.InDelta(t, 0, testutil.ToFloat64(b.ParseFailures), 0)
}
