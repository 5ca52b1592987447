package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookEventsTotal,
		webhookSignatureFailures,
		reconcileDuration,
		reconcileConflicts,
		auditLogFailures,
	)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Authenticated webhook deliveries by event type and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// reason: missing|invalid
	webhookSignatureFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected before processing.",
		},
		[]string{"reason"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Time spent applying one event to a user document, retries included.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"event", "outcome"},
	)

	reconcileConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_conflicts_total",
			Help: "Optimistic-concurrency conflicts that forced a re-read.",
		},
	)

	auditLogFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_log_failures_total",
			Help: "Audit entries that could not be appended.",
		},
	)
)

func IncWebhookEvent(event, outcome string) {
	webhookEventsTotal.WithLabelValues(norm(event), norm(outcome)).Inc()
}

func IncSignatureFailure(reason string) {
	webhookSignatureFailures.WithLabelValues(norm(reason)).Inc()
}

func ObserveReconcile(event, outcome string, d time.Duration) {
	reconcileDuration.WithLabelValues(norm(event), norm(outcome)).Observe(d.Seconds())
}

func IncReconcileConflict() { reconcileConflicts.Inc() }

func IncAuditFailure() { auditLogFailures.Inc() }
