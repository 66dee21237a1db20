// Package metrics exposes prometheus gauges/counters for the agent core's
// observable state: pending consents, MCP child counts, tool-round
// distribution, and RPC dispatch latency. Each signal is a
// promauto-registered struct field.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of signals exposed on /metrics alongside /jsonrpc.
type Metrics struct {
	// PendingConsents is a gauge of currently-pending consent records.
	PendingConsents prometheus.Gauge

	// McpRunning is a gauge of MCP children currently tracked as running.
	McpRunning prometheus.Gauge

	// ToolRounds is a histogram of how many provider tool-call rounds one
	// chat turn consumed (bounded by the orchestrator's round limit).
	ToolRounds prometheus.Histogram

	// RPCDispatchDuration measures one JSON-RPC method dispatch.
	// Labels: method, outcome (ok|error)
	RPCDispatchDuration *prometheus.HistogramVec

	// ToolExecutions counts tool invocations by name and outcome.
	// Labels: tool_name, status (executed|approved|denied|consent_required)
	ToolExecutions *prometheus.CounterVec

	// ConsentResolutions counts consent resolutions by outcome.
	// Labels: outcome (approved|denied); expiries are not counted here.
	ConsentResolutions *prometheus.CounterVec
}

// New registers and returns a fresh Metrics set against the default
// prometheus registry.
func New() *Metrics {
	return &Metrics{
		PendingConsents: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "warden_pending_consents",
			Help: "Current number of pending consent records awaiting resolution.",
		}),
		McpRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "warden_mcp_running",
			Help: "Current number of MCP servers tracked as running.",
		}),
		ToolRounds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "warden_chat_tool_rounds",
			Help:    "Number of provider tool-call rounds consumed per chat turn.",
			Buckets: []float64{0, 1, 2, 3, 4},
		}),
		RPCDispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_rpc_dispatch_duration_seconds",
				Help:    "Duration of one JSON-RPC method dispatch in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "outcome"},
		),
		ToolExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_tool_executions_total",
				Help: "Total tool invocations by name and disposition.",
			},
			[]string{"tool_name", "status"},
		),
		ConsentResolutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_consent_resolutions_total",
				Help: "Total consent resolutions by outcome.",
			},
			[]string{"outcome"},
		),
	}
}
