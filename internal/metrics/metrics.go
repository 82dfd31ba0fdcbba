// Package metrics holds the service's Prometheus instruments. Counters are
// registered once via promauto and shared across packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "engine",
			Name:      "model_calls_total",
			Help:      "Model endpoint calls by outcome.",
		},
		[]string{"outcome"},
	)

	ModelCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "arbor",
			Subsystem: "engine",
			Name:      "model_call_duration_seconds",
			Help:      "Model endpoint call latency.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "tools",
			Name:      "executions_total",
			Help:      "Server-side tool executions by tool and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	ObservationsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "patterns",
			Name:      "observations_detected_total",
			Help:      "Observations emitted by each detector, including deduplicated ones.",
		},
		[]string{"detector"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "notify",
			Name:      "notifications_sent_total",
			Help:      "Notifications dispatched by type.",
		},
		[]string{"type"},
	)

	SummaryCompactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arbor",
			Subsystem: "engine",
			Name:      "summary_compactions_total",
			Help:      "Conversation prefix compactions performed.",
		},
	)
)
