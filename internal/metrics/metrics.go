// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent step outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeMalformed = "malformed"
	OutcomeCancelled = "cancelled"
)

var (
	// Pipeline metrics
	TurnsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentchat_turns_started_total",
			Help: "Pipeline runs started",
		},
	)

	TurnsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentchat_turns_active",
			Help: "Pipeline runs currently executing",
		},
	)

	AgentSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentchat_agent_steps_total",
			Help: "Agent invocations by outcome",
		},
		[]string{"agent", "outcome"},
	)

	AgentStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentchat_agent_step_duration_seconds",
			Help:    "Agent invocation latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"agent"},
	)

	// Conversation store metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentchat_messages_appended_total",
			Help: "Messages appended locally",
		},
		[]string{"author"},
	)

	EventsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentchat_events_reconciled_total",
			Help: "Remote change events applied to conversation stores",
		},
		[]string{"kind"},
	)

	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentchat_persist_failures_total",
			Help: "Messages that failed to persist",
		},
	)

	// Realtime metrics
	SubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentchat_subscriptions_active",
			Help: "Open conversation subscriptions",
		},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentchat_realtime_reconnects_total",
			Help: "Subscription reconnect attempts",
		},
	)

	TypingSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentchat_typing_signals_total",
			Help: "Typing signals by origin",
		},
		[]string{"origin"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
