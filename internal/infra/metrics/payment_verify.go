package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		checkoutVerifyRequests,
		checkoutVerifyDuration,
	)
}

var (
	// result: ok|fail
	// reason (fail only): bad_json|bad_signature|not_found|mismatch|gateway_error|store_error
	checkoutVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_verify_requests_total",
			Help: "Client-side checkout verifications by result and reason.",
		},
		[]string{"result", "reason"},
	)

	checkoutVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkout_verify_duration_seconds",
			Help:    "Duration of checkout verification in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)
)

func ObserveCheckoutVerify(reason string, d time.Duration) {
	result := "ok"
	if reason != "" {
		result = "fail"
	}
	checkoutVerifyRequests.WithLabelValues(result, norm(reason)).Inc()
	checkoutVerifyDuration.WithLabelValues(result).Observe(d.Seconds())
}
