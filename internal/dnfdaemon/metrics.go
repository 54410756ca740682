package dnfdaemon

import "github.com/prometheus/client_golang/prometheus"

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yumex",
			Subsystem: "daemon",
			Name:      "calls_total",
			Help:      "Daemon method calls by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "yumex",
			Subsystem: "daemon",
			Name:      "call_duration_seconds",
			Help:      "Duration of daemon method calls in seconds",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300, 600},
		},
		[]string{"command"},
	)

	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yumex",
			Subsystem: "daemon",
			Name:      "rejected_calls_total",
			Help:      "Calls rejected because another command was in progress",
		},
		[]string{"command"},
	)

	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yumex",
			Subsystem: "daemon",
			Name:      "signals_total",
			Help:      "Daemon signals delivered to the event queue",
		},
		[]string{"signal"},
	)

	watchdogFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "yumex",
			Subsystem: "daemon",
			Name:      "watchdog_fired_total",
			Help:      "Watchdog expirations by kind (call, transaction)",
		},
		[]string{"kind"},
	)

	pipeRecords = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "yumex",
			Subsystem: "daemon",
			Name:      "pipe_records_total",
			Help:      "Package records decoded from daemon pipes",
		},
	)
)

func init() {
	prometheus.MustRegister(callsTotal, callDuration, rejectedTotal, signalsTotal, watchdogFired, pipeRecords)
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
