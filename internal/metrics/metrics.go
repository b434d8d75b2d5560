package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PromptsScheduled counts scheduler runs by outcome.
	PromptsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_scheduled_total",
			Help: "Total number of daily prompt scheduling attempts",
		},
		[]string{"result"}, // created, exists, failed
	)

	// DispatchRuns counts dispatcher invocations by their final status.
	DispatchRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_dispatch_runs_total",
			Help: "Total number of dispatcher invocations",
		},
		[]string{"status"},
	)

	// PushSends counts individual push deliveries.
	PushSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_push_sends_total",
			Help: "Total number of push deliveries attempted",
		},
		[]string{"result"}, // success, failed, expired
	)

	// DispatchWait records how long the dispatcher slept before fan-out.
	DispatchWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prompt_dispatch_wait_seconds",
			Help:    "Time the dispatcher waited for the scheduled instant",
			Buckets: prometheus.LinearBuckets(0, 15, 9), // 0s to 2m
		},
	)

	// GateDecisions counts gate evaluations by resulting state.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prompt_gate_decisions_total",
			Help: "Total number of posting-window gate evaluations",
		},
		[]string{"state"},
	)
)

// IncrementScheduled records one scheduler outcome.
func IncrementScheduled(result string) {
	PromptsScheduled.WithLabelValues(result).Inc()
}

func IncrementDispatchRun(status string) {
	DispatchRuns.WithLabelValues(status).Inc()
}

func IncrementPushSend(result string) {
	PushSends.WithLabelValues(result).Inc()
}

func RecordDispatchWait(d time.Duration) {
	DispatchWait.Observe(d.Seconds())
}

func IncrementGateDecision(state string) {
	GateDecisions.WithLabelValues(state).Inc()
}
