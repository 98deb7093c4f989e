package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lnvps",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Storefront API request latency by method and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "outcome"})

	signingFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lnvps",
		Subsystem: "api",
		Name:      "signing_failures_total",
		Help:      "Requests whose Authorization credential could not be produced.",
	})
)

// RegisterMetrics registers the client collectors with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{requestDuration, signingFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func observeRequest(method, outcome string, start time.Time) {
	requestDuration.WithLabelValues(method, outcome).Observe(time.Since(start).Seconds())
}
