package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	enqueue(
		webhookEvents,
		webhookDuration,
	)
}

var (
	webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Count of payment webhook deliveries by provider and result.",
		},
		[]string{"provider", "result"}, // result: applied|duplicate|ignored|auth_failed|error
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of payment webhook handling in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"provider"},
	)
)

func IncWebhookEvent(provider, result string) {
	webhookEvents.WithLabelValues(norm(provider), norm(result)).Inc()
}

func ObserveWebhookDuration(provider string, seconds float64) {
	webhookDuration.WithLabelValues(norm(provider)).Observe(seconds)
}
