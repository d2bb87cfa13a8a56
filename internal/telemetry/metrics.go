// Package telemetry wires the scan pipeline's cross-cutting metrics
// and tracing: Prometheus counters/histograms for scan latency, queue
// depth, breaker state, and pattern-match time, plus an OpenTelemetry
// tracer provider and span helpers for a scan and its analyzer
// branches. None of the core packages import this one; the
// orchestrator accepts a *Metrics through its ScanObserver interface,
// the same pluggable-dependency shape used for the explainer and event
// sink. No core package takes a trace.Tracer, and the orchestrator
// opens no spans.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rawblock/txscan-engine/internal/model"
)

// Metrics bundles every Prometheus collector the pipeline reports to.
// Registered once at startup against a *prometheus.Registry.
type Metrics struct {
	ScanDuration       *prometheus.HistogramVec
	ScanTotal          *prometheus.CounterVec
	ComponentDuration  *prometheus.HistogramVec
	ComponentFailures  *prometheus.CounterVec
	QueueDepth         prometheus.Gauge
	AdmissionRejected  *prometheus.CounterVec
	BreakerState       *prometheus.GaugeVec
	PatternMatchTime   prometheus.Histogram
	CacheHits          *prometheus.CounterVec
}

// NewMetrics constructs and registers every collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer wrapped in a registry for production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ScanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "txscan",
			Name:      "scan_duration_seconds",
			Help:      "End-to-end scan pipeline duration.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 1.7, 2.5},
		}, []string{"risk_level"}),

		ScanTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txscan",
			Name:      "scan_total",
			Help:      "Total scans completed, by final risk level.",
		}, []string{"risk_level"}),

		ComponentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "txscan",
			Name:      "component_duration_seconds",
			Help:      "Per-analyzer duration within a scan.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25},
		}, []string{"component"}),

		ComponentFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txscan",
			Name:      "component_failures_total",
			Help:      "Analyzer branches that did not complete before their deadline.",
		}, []string{"component"}),

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "txscan",
			Name:      "admission_queue_depth",
			Help:      "Current number of requests waiting in the admission queue.",
		}),

		AdmissionRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txscan",
			Name:      "admission_rejected_total",
			Help:      "Requests rejected by the admission layer, by reason.",
		}, []string{"reason"}),

		BreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "txscan",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open), by breaker name.",
		}, []string{"breaker"}),

		PatternMatchTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "txscan",
			Name:      "pattern_match_duration_seconds",
			Help:      "Pattern-matching engine duration per transaction.",
			Buckets:   []float64{.001, .005, .01, .02, .03, .05, .1},
		}),

		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "txscan",
			Name:      "cache_requests_total",
			Help:      "Cache lookups, by namespace and outcome (hit/miss).",
		}, []string{"namespace", "outcome"}),
	}
}

// ObserveScan records a completed scan's duration and outcome.
func (m *Metrics) ObserveScan(result model.ScanResult) {
	label := string(result.RiskLevel)
	m.ScanDuration.WithLabelValues(label).Observe(result.ScanTimeMs / 1000.0)
	m.ScanTotal.WithLabelValues(label).Inc()

	for name, ms := range result.ComponentTimes {
		m.ComponentDuration.WithLabelValues(string(name)).Observe(ms / 1000.0)
	}
	for _, name := range result.FailedComponents {
		m.ComponentFailures.WithLabelValues(string(name)).Inc()
	}
}

// RecordCacheOutcome increments the cache hit/miss counter for one
// namespace lookup.
func (m *Metrics) RecordCacheOutcome(namespace string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheHits.WithLabelValues(namespace, outcome).Inc()
}

// breakerStateValue maps gobreaker's State to the gauge encoding
// documented on BreakerState.
func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordBreakerState reports a named breaker's current state.
func (m *Metrics) RecordBreakerState(name, state string) {
	m.BreakerState.WithLabelValues(name).Set(breakerStateValue(state))
}
