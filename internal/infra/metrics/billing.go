package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		billingRunsTotal,
		billingRunDuration,
		subscriptionTransitionsTotal,
		notificationsTotal,
		subscriptionsByStatus,
	)
}

var (
	billingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_runs_total",
			Help: "Billing runs by trigger and outcome.",
		},
		[]string{"trigger", "outcome"}, // outcome: 'ok', 'partial', 'locked', 'failed'
	)

	billingRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "billing_run_duration_seconds",
			Help:    "Wall time of a billing run.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		},
	)

	subscriptionTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Subscription status changes applied by the billing engine or by reviewers.",
		},
		[]string{"from", "to"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_notifications_total",
			Help: "Billing notifications by kind and delivery status.",
		},
		[]string{"kind", "status"}, // status: 'sent', 'skipped', 'unsent', 'error'
	)

	subscriptionsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions",
			Help: "Current number of subscriptions per status.",
		},
		[]string{"status"},
	)
)

func ObserveBillingRun(trigger, outcome string, seconds float64) {
	billingRunsTotal.WithLabelValues(norm(trigger), norm(outcome)).Inc()
	billingRunDuration.Observe(seconds)
}

func IncBillingRun(trigger, outcome string) {
	billingRunsTotal.WithLabelValues(norm(trigger), norm(outcome)).Inc()
}

func IncTransition(from, to string) {
	subscriptionTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

// IncNotification strips the day offset from kind so the label set stays bounded.
func IncNotification(kind, status string) {
	notificationsTotal.WithLabelValues(notificationFamily(kind), norm(status)).Inc()
}

func SetSubscriptionCount(status string, n int) {
	subscriptionsByStatus.WithLabelValues(norm(status)).Set(float64(n))
}

func notificationFamily(kind string) string {
	k := norm(kind)
	for _, family := range []string{"trial_ending", "past_due"} {
		if strings.HasPrefix(k, family+"_") {
			return family
		}
	}
	return k
}
