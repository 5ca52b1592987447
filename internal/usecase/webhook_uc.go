package usecase

import (
	"context"

	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// Delivery is one authenticated webhook request.
type Delivery struct {
	EventID string // gateway delivery id, may be empty
	Body    []byte // exact bytes the signature was computed over
}

type WebhookResult struct {
	EventType string
	Outcome   model.AuditOutcome
	UserID    string
	OrderID   string
	PaymentID string
}

// WebhookUseCase turns an authenticated delivery into at most one
// reconciliation and exactly one audit entry. Only a reconciliation that
// gave up on writing returns an error.
type WebhookUseCase interface {
	Handle(ctx context.Context, d Delivery) (*WebhookResult, error)
}

type eventHandler func(ctx context.Context, ev *model.PaymentEvent) (*ReconcileResult, error)

type webhookUC struct {
	reconcile ReconcileUseCase
	notify    NotificationUseCase
	audit     AuditLog
	dedupe    repository.DeliveryDeduper // optional
	handlers  map[model.EventKind]eventHandler
	log       *zerolog.Logger
}

func NewWebhookUseCase(reconcile ReconcileUseCase, notify NotificationUseCase, audit AuditLog, dedupe repository.DeliveryDeduper, logger *zerolog.Logger) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	w := &webhookUC{reconcile: reconcile, notify: notify, audit: audit, dedupe: dedupe, log: &l}
	w.handlers = map[model.EventKind]eventHandler{
		model.EventPaymentCaptured: w.onPaymentCaptured,
		model.EventPaymentFailed:   w.onPaymentFailed,
		model.EventOrderPaid:       w.onOrderPaid,
		model.EventOrderCreated:    w.onOrderCreated,
		model.EventRefundCreated:   w.onRefundCreated,
	}
	return w
}

func (w *webhookUC) Handle(ctx context.Context, d Delivery) (*WebhookResult, error) {
	ev, decodeErr := model.DecodeEvent(d.Body)
	res := &WebhookResult{EventType: ev.Type, OrderID: ev.OrderID(), PaymentID: ev.PaymentID()}
	entry := &model.PaymentLogEntry{EventType: ev.Type, EventID: d.EventID, RawData: string(d.Body)}
	if entry.EventType == "" {
		entry.EventType = "unknown"
	}
	ctx = logging.WithEvent(ctx, entry.EventType)
	log := logging.With(ctx, w.log)

	defer func() {
		entry.Outcome = res.Outcome
		entry.UserID, entry.OrderID, entry.PaymentID = res.UserID, res.OrderID, res.PaymentID
		w.audit.Append(ctx, entry)
		metrics.IncWebhookEvent(eventLabel(ev), string(res.Outcome))
	}()

	if decodeErr != nil {
		res.Outcome = model.AuditMalformed
		entry.Error = decodeErr.Error()
		log.Warn().Err(decodeErr).Msg("webhook payload rejected")
		return res, nil
	}

	if d.EventID != "" && w.dedupe != nil {
		first, err := w.dedupe.Claim(ctx, d.EventID)
		switch {
		case err != nil:
			// without the dedupe store the state machine still keeps replays harmless
			log.Warn().Err(err).Str("event_id", d.EventID).Msg("dedupe check failed, processing anyway")
		case !first:
			res.Outcome = model.AuditDuplicate
			log.Info().Str("event_id", d.EventID).Msg("duplicate delivery")
			return res, nil
		}
	}

	rr, err := w.classify(ev.Kind)(ctx, ev)
	if rr != nil {
		res.Outcome = rr.Outcome
		res.UserID = rr.UserID
		if rr.OrderID != "" {
			res.OrderID = rr.OrderID
		}
	}
	if err != nil {
		res.Outcome = model.AuditWriteFailed
		entry.Error = err.Error()
		w.forget(ctx, d.EventID)
		return res, err
	}

	w.confirm(ctx, d.EventID)
	if rr.Completed && rr.User != nil && rr.Order != nil {
		w.notify.Dispatch(ctx, rr.User, rr.Order)
	}
	log.Info().Str("outcome", string(res.Outcome)).Str("order_id", res.OrderID).Msg("webhook handled")
	return res, nil
}

// classify maps an event kind to its handler; unknown kinds are acknowledged.
func (w *webhookUC) classify(kind model.EventKind) eventHandler {
	if h, ok := w.handlers[kind]; ok {
		return h
	}
	return w.onUnknown
}

func (w *webhookUC) onPaymentCaptured(ctx context.Context, ev *model.PaymentEvent) (*ReconcileResult, error) {
	return w.reconcile.ApplyPaymentCaptured(ctx, ev.Payment)
}

func (w *webhookUC) onPaymentFailed(ctx context.Context, ev *model.PaymentEvent) (*ReconcileResult, error) {
	return w.reconcile.ApplyPaymentFailed(ctx, ev.Payment)
}

func (w *webhookUC) onOrderPaid(ctx context.Context, ev *model.PaymentEvent) (*ReconcileResult, error) {
	return w.reconcile.ApplyOrderPaid(ctx, ev.Order, ev.Payment)
}

func (w *webhookUC) onRefundCreated(ctx context.Context, ev *model.PaymentEvent) (*ReconcileResult, error) {
	return w.reconcile.ApplyRefund(ctx, ev.Refund)
}

// order.created may arrive after the capture; the user document is left alone.
func (w *webhookUC) onOrderCreated(ctx context.Context, ev *model.PaymentEvent) (*ReconcileResult, error) {
	return &ReconcileResult{Outcome: model.AuditRecorded, OrderID: ev.Order.ID}, nil
}

func (w *webhookUC) onUnknown(ctx context.Context, ev *model.PaymentEvent) (*ReconcileResult, error) {
	logging.With(ctx, w.log).Info().Str("type", ev.Type).Msg("unhandled event type acknowledged")
	return &ReconcileResult{Outcome: model.AuditIgnored}, nil
}

// eventLabel keeps the metric label set bounded: types without a handler
// share one value.
func eventLabel(ev *model.PaymentEvent) string {
	if ev.Kind == model.EventUnknown {
		return "other"
	}
	return ev.Type
}

func (w *webhookUC) confirm(ctx context.Context, eventID string) {
	if eventID == "" || w.dedupe == nil {
		return
	}
	if err := w.dedupe.Confirm(context.WithoutCancel(ctx), eventID); err != nil {
		// the claim lapses and a retry is reconciled again, which is a noop
		logging.With(ctx, w.log).Warn().Err(err).Str("event_id", eventID).Msg("could not confirm delivery id")
	}
}

func (w *webhookUC) forget(ctx context.Context, eventID string) {
	if eventID == "" || w.dedupe == nil {
		return
	}
	if err := w.dedupe.Forget(context.WithoutCancel(ctx), eventID); err != nil {
		logging.With(ctx, w.log).Warn().Err(err).Str("event_id", eventID).Msg("could not release delivery id")
	}
}
