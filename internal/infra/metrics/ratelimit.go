package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(rateLimitTriggeredTotal) }

var rateLimitTriggeredTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_triggered_total",
		Help: "Requests refused by a rate limiter.",
	},
	[]string{"scope"}, // e.g. billing_run
)

func IncRateLimited(scope string) {
	rateLimitTriggeredTotal.WithLabelValues(norm(scope)).Inc()
}
