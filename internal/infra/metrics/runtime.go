package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	enqueue(buildInfo, dbPoolTotal, dbPoolIdle, dbPoolInUse)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Always 1; version and commit ride on the labels.",
		},
		[]string{"version", "commit"},
	)

	dbPoolTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_total_connections",
		Help: "Connections currently held by the pgx pool.",
	})
	dbPoolIdle = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_idle_connections",
		Help: "Pool connections idle and ready for acquisition.",
	})
	dbPoolInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "db_pool_in_use_connections",
		Help: "Pool connections currently serving queries.",
	})
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolTotal.Set(float64(total))
	dbPoolIdle.Set(float64(idle))
	dbPoolInUse.Set(float64(inUse))
}
