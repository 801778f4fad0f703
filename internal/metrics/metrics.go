// Package metrics exposes the bot's Prometheus collectors. Labels are kept to
// small closed sets (document type codes, outcome names) so cardinality stays
// bounded; chat IDs are deliberately never used as labels.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AccessChecks counts access decisions by outcome
	// (denied, allowlisted, granted, metered, no_access).
	AccessChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_access_checks_total",
			Help: "Total access-control decisions by outcome.",
		},
		[]string{"outcome"},
	)

	// DocumentsGenerated counts successfully rendered and delivered documents
	// by document type code.
	DocumentsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_documents_generated_total",
			Help: "Total documents rendered and delivered, by type.",
		},
		[]string{"type"},
	)

	// RenderFailures counts terminal renderer failures by document type code.
	RenderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_render_failures_total",
			Help: "Total terminal render failures, by type.",
		},
		[]string{"type"},
	)

	// Deliveries counts delivery pipeline completions by outcome
	// (ok, exhausted, aborted).
	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_deliveries_total",
			Help: "Total document delivery completions by outcome.",
		},
		[]string{"outcome"},
	)

	// UpdatesInflight gauges messages currently being processed by chat
	// workers.
	UpdatesInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_updates_inflight",
			Help: "Messages currently being processed.",
		},
	)

	// RenderDuration records renderer round-trip latency in seconds by
	// document type code. Buckets are tuned for a slow remote renderer.
	RenderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_render_duration_seconds",
			Help:    "Renderer round-trip duration in seconds.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		AccessChecks,
		DocumentsGenerated,
		RenderFailures,
		Deliveries,
		UpdatesInflight,
		RenderDuration,
	)
}
