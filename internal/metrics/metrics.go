// Package metrics exports Prometheus metrics for monitor runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/regwatch/internal/monitor"
)

const namespace = "regwatch"

// Metrics holds the monitor's Prometheus collectors. It implements
// monitor.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	// Per-source metrics
	SourcesProcessed *prometheus.CounterVec
	SourceDuration   *prometheus.HistogramVec

	// Run metrics
	RunsTotal    prometheus.Counter
	RunDuration  prometheus.Histogram
	LastRun      prometheus.Gauge
	LastRunError prometheus.Gauge

	// Classifier metrics
	ParseFailures prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SourcesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_processed_total",
			Help:      "Sources processed by outcome and meaningfulness",
		}, []string{"outcome", "meaningful"}),
		SourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Time to fetch, compare and record one source",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed monitor runs",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a monitor run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		LastRunError: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_errors",
			Help:      "Sources that failed in the last run",
		}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_parse_failures_total",
			Help:      "Classifier responses that were not valid JSON",
		}),
	}
}

// ObserveSource records one processed source.
func (m *Metrics) ObserveSource(outcome monitor.Outcome, meaningful bool, d time.Duration) {
	m.SourcesProcessed.WithLabelValues(string(outcome), strconv.FormatBool(meaningful)).Inc()
	m.SourceDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(summary *monitor.RunSummary) {
	m.RunsTotal.Inc()
	m.RunDuration.Observe(summary.Duration().Seconds())
	m.LastRun.Set(float64(summary.FinishedAt.Unix()))
	m.LastRunError.Set(float64(summary.Count(monitor.OutcomeError)))
}

// ParseFailure counts an unparseable classifier response.
func (m *Metrics) ParseFailure() {
	m.ParseFailures.Inc()
}

// Handler returns the Prometheus HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
