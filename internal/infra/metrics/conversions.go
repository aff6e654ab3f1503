package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	enqueue(
		conversionsTotal,
		conversionPagesTotal,
		conversionDuration,
	)
}

var (
	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversions_total",
			Help: "Document conversions by outcome.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	conversionPagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "conversion_pages_total",
			Help: "Total number of PDF pages rendered.",
		},
	)

	conversionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conversion_duration_seconds",
			Help:    "Time spent rendering a document to PDF.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 90, 180},
		},
	)
)

func IncConversion(status string) {
	conversionsTotal.WithLabelValues(norm(status)).Inc()
}

func AddConversionPages(pages int) {
	conversionPagesTotal.Add(float64(pages))
}

func ObserveConversionDuration(seconds float64) {
	conversionDuration.Observe(seconds)
}
