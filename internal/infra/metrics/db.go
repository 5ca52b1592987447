package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolStats, storeOpDuration) }

var (
	dbPoolStats = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_stats",
			Help: "Current state of the database connection pool.",
		},
		[]string{"state"}, // 'total', 'idle', 'in_use'
	)

	storeOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Document store calls by backend, operation and result.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "op", "result"},
	)
)

func SetDBPoolStats(total, idle, inUse int32) {
	dbPoolStats.WithLabelValues("total").Set(float64(total))
	dbPoolStats.WithLabelValues("idle").Set(float64(idle))
	dbPoolStats.WithLabelValues("in_use").Set(float64(inUse))
}

// ObserveStoreOp is meant to be deferred: defer metrics.ObserveStoreOp("postgres", "cas", time.Now(), &err)
func ObserveStoreOp(store, op string, start time.Time, errp *error) {
	result := "ok"
	if errp != nil && *errp != nil {
		result = "error"
	}
	storeOpDuration.WithLabelValues(store, op, result).Observe(time.Since(start).Seconds())
}
