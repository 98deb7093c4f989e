package cache

import "github.com/prometheus/client_golang/prometheus"

var cacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lnvps",
	Subsystem: "cache",
	Name:      "requests_total",
	Help:      "Cache lookups by result (hit, miss, reload, error).",
}, []string{"result"})

// RegisterMetrics registers the cache collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(cacheRequests)
}
