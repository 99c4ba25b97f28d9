// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal tracks order evaluations by outcome action
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "evaluation",
			Name:      "evaluations_total",
			Help:      "Total number of order evaluations by outcome",
		},
		[]string{"action"},
	)

	// EvaluationErrors tracks evaluations that failed before an outcome was applied
	EvaluationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "evaluation",
			Name:      "errors_total",
			Help:      "Total number of failed order evaluations by reason",
		},
		[]string{"reason"},
	)

	// EvaluationDuration tracks end-to-end evaluation duration in seconds
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "evaluation",
			Name:      "duration_seconds",
			Help:      "Duration of order evaluations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// CandidatesPerEvaluation tracks the candidate window size
	CandidatesPerEvaluation = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "evaluation",
			Name:      "candidates",
			Help:      "Number of candidate orders compared per evaluation",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// MatchConfidence tracks the confidence of flagged matches
	MatchConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "evaluation",
			Name:      "match_confidence",
			Help:      "Confidence of flagged duplicate matches",
			Buckets:   []float64{70, 80, 90, 100},
		},
	)

	// NotificationsTotal tracks duplicate alerts by status
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "notification",
			Name:      "alerts_total",
			Help:      "Total number of duplicate alerts dispatched by status",
		},
		[]string{"status"},
	)

	// LockContention tracks evaluations rejected because another holder owned the order lock
	LockContention = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "lock",
			Name:      "contention_total",
			Help:      "Total number of order lock acquisitions that found the lock held",
		},
	)

	// DismissalsTotal tracks operator dismissals
	DismissalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "flag",
			Name:      "dismissals_total",
			Help:      "Total number of duplicate flags dismissed by operators",
		},
	)

	// DLQMessagesTotal tracks order events sent to the dead letter queue
	DLQMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dlq",
			Name:      "messages_total",
			Help:      "Total number of order events sent to the dead letter queue",
		},
		[]string{"reason"},
	)
)

// RecordEvaluation records a completed evaluation
func RecordEvaluation(action string, candidates int, durationSeconds float64) {
	EvaluationsTotal.WithLabelValues(action).Inc()
	CandidatesPerEvaluation.Observe(float64(candidates))
	EvaluationDuration.Observe(durationSeconds)
}

// RecordEvaluationError records a failed evaluation
func RecordEvaluationError(reason string) {
	EvaluationErrors.WithLabelValues(reason).Inc()
}

// RecordFlag records the confidence of an applied flag
func RecordFlag(confidence int) {
	MatchConfidence.Observe(float64(confidence))
}

// RecordNotification records a duplicate alert dispatch attempt
func RecordNotification(status string) {
	NotificationsTotal.WithLabelValues(status).Inc()
}

// RecordDLQMessage records a dead-lettered order event
func RecordDLQMessage(reason string) {
	DLQMessagesTotal.WithLabelValues(reason).Inc()
}
