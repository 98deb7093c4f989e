package pricing

import "github.com/prometheus/client_golang/prometheus"

var quotes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lnvps",
	Subsystem: "pricing",
	Name:      "quotes_total",
	Help:      "Custom price quotes by result.",
}, []string{"result"})

// RegisterMetrics registers the pricing collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(quotes)
}
