package sched

import (
	"context"
	"time"

	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/usecase"

	"github.com/rs/zerolog"
)

// PaymentReconciler periodically scans users with stale pending orders and
// asks the gateway what happened to them. It covers webhooks that were never
// delivered or whose store write gave up.
type PaymentReconciler struct {
	users      repository.UserRepository
	gateway    adapter.PaymentGateway
	reconcile  usecase.ReconcileUseCase
	notify     usecase.NotificationUseCase
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending order must be to be checked
	log        *zerolog.Logger

	// cursor is the last user id of the previous page; "" restarts the scan.
	// Only the Start goroutine touches it.
	cursor string
}

const sweepBatch = 200

func NewPaymentReconciler(
	users repository.UserRepository,
	gateway adapter.PaymentGateway,
	reconcile usecase.ReconcileUseCase,
	notify usecase.NotificationUseCase,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		users:      users,
		gateway:    gateway,
		reconcile:  reconcile,
		notify:     notify,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &l,
	}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return
		case <-t.C:
			w.tick(ctx, time.Now())
		}
	}
}

// tick settles one page of users and advances the cursor, so users beyond
// the first page are reached on later ticks even when earlier pages only
// hold orders the gateway never saw paid.
func (w *PaymentReconciler) tick(ctx context.Context, now time.Time) int {
	users, err := w.users.ListWithPendingOrders(ctx, w.cursor, sweepBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending orders failed")
		return 0
	}
	if len(users) < sweepBatch {
		w.cursor = ""
	} else {
		w.cursor = users[len(users)-1].ID
	}
	cutoff := now.Add(-w.staleAfter)
	settled := 0
	for _, u := range users {
		for _, o := range u.Orders {
			if ctx.Err() != nil {
				return settled
			}
			if o.PaymentStatus != model.PaymentStatusPending || o.CreatedAt.After(cutoff) {
				continue
			}
			if w.settle(ctx, o.OrderID) {
				settled++
			}
		}
	}
	if settled > 0 {
		w.log.Info().Int("count", settled).Msg("pending orders settled from gateway state")
	}
	return settled
}

// settle reconciles one pending order against the gateway and reports
// whether the stored state changed.
func (w *PaymentReconciler) settle(ctx context.Context, orderID string) bool {
	log := w.log.With().Str("order_id", orderID).Logger()

	order, err := w.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		log.Warn().Err(err).Msg("gateway fetch order failed")
		return false
	}
	if order.Attempts == 0 && order.Status != "paid" {
		return false
	}
	payments, err := w.gateway.FetchOrderPayments(ctx, orderID)
	if err != nil {
		log.Warn().Err(err).Msg("gateway fetch payments failed")
		return false
	}
	captured, failed := pickPayments(payments)

	var res *usecase.ReconcileResult
	switch {
	case captured != nil:
		res, err = w.reconcile.ApplyOrderPaid(ctx, order, captured)
	case failed != nil:
		res, err = w.reconcile.ApplyPaymentFailed(ctx, failed)
	default:
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("reconcile from gateway state failed")
		return false
	}
	if res.Completed {
		w.notify.Dispatch(ctx, res.User, res.Order)
	}
	return res.Changed
}

// pickPayments returns the first successful attempt and the latest failed one.
func pickPayments(payments []*model.PaymentEntity) (captured, failed *model.PaymentEntity) {
	for _, p := range payments {
		if p == nil {
			continue
		}
		switch p.Status {
		case "captured", "authorized":
			if captured == nil {
				captured = p
			}
		case "failed":
			if failed == nil || p.CreatedAt > failed.CreatedAt {
				failed = p
			}
		}
	}
	return captured, failed
}
