// Package prometheus provides Prometheus metrics for the dialog runtime.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "botservice"

var (
	// turnDuration is a histogram of inbound turn processing duration in seconds.
	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Histogram of turn processing duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"status"}, // status: waiting, complete, cancelled, error
	)

	// turnsTotal is a counter of processed turns.
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of processed turns",
		},
		[]string{"status"},
	)

	// turnsActive is a gauge of turns being processed.
	turnsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of turns currently being processed",
		},
	)

	// intentsTotal is a counter of routing decisions.
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Total number of routing decisions by branch table, branch and intent",
		},
		[]string{"table", "branch", "intent"}, // branch: intent, default, unconfigured
	)

	// recognizerErrorsTotal is a counter of failed recognizer calls.
	recognizerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_errors_total",
			Help:      "Total number of recognizer calls that failed and were treated as None",
		},
		[]string{"table"},
	)

	// dialogsTotal is a counter of dialog lifecycle transitions.
	dialogsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogs_total",
			Help:      "Total number of dialogs started and ended",
		},
		[]string{"dialog", "event"}, // event: started, ended
	)

	// promptRetriesTotal is a counter of rejected prompt answers.
	promptRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_retries_total",
			Help:      "Total number of prompt answers rejected by recognition or validation",
		},
		[]string{"prompt"},
	)

	// stateOperationsTotal is a counter of dialog state store operations.
	stateOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_operations_total",
			Help:      "Total number of dialog state store operations",
		},
		[]string{"operation"}, // operation: load_hit, load_miss, save, delete
	)

	// profilesSavedTotal is a counter of user profile writes.
	profilesSavedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_saved_total",
			Help:      "Total number of user profile writes",
		},
		[]string{"age"}, // age: given, declined
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		turnDuration,
		turnsTotal,
		turnsActive,
		intentsTotal,
		recognizerErrorsTotal,
		dialogsTotal,
		promptRetriesTotal,
		stateOperationsTotal,
		profilesSavedTotal,
	}
)

// RecordTurnStart records a turn entering processing.
func RecordTurnStart() {
	turnsActive.Inc()
}

// RecordTurnEnd records a turn leaving processing.
func RecordTurnEnd(status string, durationSeconds float64) {
	turnsActive.Dec()
	turnDuration.WithLabelValues(status).Observe(durationSeconds)
	turnsTotal.WithLabelValues(status).Inc()
}

// RecordIntent records a routing decision.
func RecordIntent(table, branch, intent string) {
	intentsTotal.WithLabelValues(table, branch, intent).Inc()
}

// RecordRecognizerError records a recognizer failure.
func RecordRecognizerError(table string) {
	recognizerErrorsTotal.WithLabelValues(table).Inc()
}

// RecordDialog records a dialog lifecycle transition.
func RecordDialog(dialogID, event string) {
	dialogsTotal.WithLabelValues(dialogID, event).Inc()
}

// RecordPromptRetry records a rejected prompt answer.
func RecordPromptRetry(promptID string) {
	promptRetriesTotal.WithLabelValues(promptID).Inc()
}

// RecordStateOperation records a dialog state store operation.
func RecordStateOperation(operation string) {
	stateOperationsTotal.WithLabelValues(operation).Inc()
}

// RecordProfileSaved records a profile write.
func RecordProfileSaved(hasAge bool) {
	age := "declined"
	if hasAge {
		age = "given"
	}
	profilesSavedTotal.WithLabelValues(age).Inc()
}
