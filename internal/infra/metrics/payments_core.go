package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	enqueue(
		paymentsTotal,
		paymentsRevenueCents,
		paymentsExpiredTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by provider and status transition (created/completed/failed/expired).",
		},
		[]string{"provider", "status"},
	)

	paymentsRevenueCents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_cents_total",
			Help: "The total monetary value of completed payments in minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	paymentsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_expired_total",
			Help: "Total number of pending payments closed by the expiry worker.",
		},
	)
)

func IncPayment(provider, status string) {
	paymentsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, cents int64) {
	paymentsRevenueCents.WithLabelValues(norm(currency)).Add(float64(cents))
}

func IncPaymentsExpired(count int64) {
	paymentsExpiredTotal.Add(float64(count))
}
