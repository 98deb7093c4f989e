package payment

import "github.com/prometheus/client_golang/prometheus"

var (
	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lnvps",
		Subsystem: "payment",
		Name:      "transitions_total",
		Help:      "Orchestrator state transitions.",
	}, []string{"from", "to"})

	staleEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lnvps",
		Subsystem: "payment",
		Name:      "stale_events_total",
		Help:      "Asynchronous results discarded because their attempt ended.",
	}, []string{"event"})

	pollChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lnvps",
		Subsystem: "payment",
		Name:      "poll_checks_total",
		Help:      "Payment status polls by result.",
	}, []string{"result"})
)

// RegisterMetrics registers the payment collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{transitions, staleEvents, pollChecks} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
