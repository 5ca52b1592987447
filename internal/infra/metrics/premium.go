package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		premiumUpgradesTotal,
		premiumExpiredTotal,
	)
}

var (
	premiumUpgradesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "premium_upgrades_total",
			Help: "Users promoted to premium by a completed plan purchase.",
		},
	)

	premiumExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "premium_expired_total",
			Help: "Users demoted because their premium plan expired.",
		},
	)
)

func IncPremiumUpgrade() { premiumUpgradesTotal.Inc() }

func IncPremiumExpired(count int) {
	premiumExpiredTotal.Add(float64(count))
}
