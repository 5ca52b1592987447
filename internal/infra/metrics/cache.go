package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal, dedupeChecksTotal) }

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Tracks cache hits and misses for various caches.",
		},
		[]string{"cache", "result"}, // e.g., cache="orders", result="hit"
	)

	dedupeChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_dedupe_checks_total",
			Help: "Delivery id checks by result (first/duplicate/error).",
		},
		[]string{"result"},
	)
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func IncDedupeCheck(result string) {
	dedupeChecksTotal.WithLabelValues(norm(result)).Inc()
}
