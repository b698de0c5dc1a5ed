package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "line_chatbot"

var (
	// FlowTransitions counts applied flow steps by flow, source step and outcome step
	FlowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flow_transitions_total",
		Help:      "Flow state transitions.",
	}, []string{"flow", "from", "to"})

	// SessionResets counts sessions torn down because of corrupt state or failed actions
	SessionResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_resets_total",
		Help:      "Sessions deleted after an unrecoverable error.",
	}, []string{"flow", "reason"})

	EventsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	ReplyErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reply_errors_total",
		Help:      "Failed reply gateway calls.",
	})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "webhook_batch_duration_seconds",
		Help:      "Time spent dispatching one webhook batch.",
		Buckets:   prometheus.DefBuckets,
	})
)
