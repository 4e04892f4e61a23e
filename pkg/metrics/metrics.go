// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// PauseTransitions tracks pause/resume state transitions by outcome.
	PauseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pause_transitions_total",
			Help: "Conversation pause/resume transitions",
		},
		[]string{"transition", "outcome"},
	)

	// SweepResumes tracks conversations auto-resumed by the expiry sweep.
	SweepResumes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_resumes_total",
			Help: "Conversations auto-resumed by the expiry sweep",
		},
		[]string{"table"},
	)

	// WebhookCalls tracks bot control webhook invocations.
	WebhookCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_webhook_calls_total",
			Help: "Bot control webhook calls",
		},
		[]string{"action", "outcome"},
	)

	// NormalizationWarnings tracks rows whose message payload could not be
	// parsed and degraded to a placeholder.
	NormalizationWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payload_normalization_warnings_total",
			Help: "Lead rows with unparseable message payloads",
		},
		[]string{"table"},
	)

	// ConversationRefetches tracks full snapshot refetches per trigger.
	ConversationRefetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_refetches_total",
			Help: "Full conversation snapshot refetches",
		},
		[]string{"trigger"},
	)

	// RealtimeEvents tracks change-feed notifications received.
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_total",
			Help: "Change feed notifications received",
		},
		[]string{"table", "type"},
	)

	// ActiveSessions tracks live tenant sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenant_sessions_active",
			Help: "Number of active tenant sessions",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTransition records a pause/resume transition outcome.
func RecordTransition(transition, outcome string) {
	PauseTransitions.WithLabelValues(transition, outcome).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
