package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase is the only writer of orders, isPremium and premiumPlan.
// Every method is a read-modify-write of one user document guarded by a
// version compare-and-swap, retried on conflict.
type ReconcileUseCase interface {
	ApplyPaymentCaptured(ctx context.Context, p *model.PaymentEntity) (*ReconcileResult, error)
	ApplyOrderPaid(ctx context.Context, o *model.OrderEntity, p *model.PaymentEntity) (*ReconcileResult, error)
	ApplyPaymentFailed(ctx context.Context, p *model.PaymentEntity) (*ReconcileResult, error)
	ApplyRefund(ctx context.Context, r *model.RefundEntity) (*ReconcileResult, error)
	// RegisterOrder appends a freshly created pending order to userID.
	RegisterOrder(ctx context.Context, userID string, o model.Order) (*ReconcileResult, error)
	// ExpirePremium clears isPremium when the plan expired before now.
	ExpirePremium(ctx context.Context, userID string, now time.Time) (*ReconcileResult, error)
}

// ReconcileResult describes what one application did to the user document.
type ReconcileResult struct {
	Outcome   model.AuditOutcome
	UserID    string
	OrderID   string
	PaymentID string
	Changed   bool // a new version was committed
	Completed bool // an order moved to completed in this commit
	Upgraded  bool // premium was granted in this commit
	User      *model.User
	Order     *model.Order
}

type ReconcileOptions struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Defaults    model.PremiumDefaults
}

const maxBackoff = 2 * time.Second

type reconcileUC struct {
	users   repository.UserRepository
	locator OrderLocator
	cache   repository.OrderCache // optional
	opts    ReconcileOptions
	log     *zerolog.Logger
}

func NewReconcileUseCase(users repository.UserRepository, locator OrderLocator, cache repository.OrderCache, opts ReconcileOptions, logger *zerolog.Logger) *reconcileUC {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 50 * time.Millisecond
	}
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{users: users, locator: locator, cache: cache, opts: opts, log: &l}
}

// mutation is what a mutateFunc did to the in-memory copy.
type mutation struct {
	changed   bool
	completed bool
	upgraded  bool
	status    string // payments_total label, empty when nothing to count
	order     *model.Order
}

type (
	locateFunc func(ctx context.Context) (*model.User, error)
	mutateFunc func(u *model.User, now time.Time) (mutation, error)
)

func (r *reconcileUC) ApplyPaymentCaptured(ctx context.Context, p *model.PaymentEntity) (*ReconcileResult, error) {
	defer logging.TraceDuration(r.log, "ReconcileUC.ApplyPaymentCaptured")()
	res, err := r.apply(ctx, "payment.captured",
		func(ctx context.Context) (*model.User, error) { return r.locator.FindOwner(ctx, p.OrderID) },
		r.completeOrder(p.OrderID, p, nil),
	)
	res.OrderID, res.PaymentID = p.OrderID, p.ID
	return res, err
}

func (r *reconcileUC) ApplyOrderPaid(ctx context.Context, o *model.OrderEntity, p *model.PaymentEntity) (*ReconcileResult, error) {
	defer logging.TraceDuration(r.log, "ReconcileUC.ApplyOrderPaid")()
	res, err := r.apply(ctx, "order.paid",
		func(ctx context.Context) (*model.User, error) { return r.locator.FindOwner(ctx, o.ID) },
		r.completeOrder(o.ID, p, o),
	)
	res.OrderID, res.PaymentID = o.ID, p.ID
	return res, err
}

func (r *reconcileUC) ApplyPaymentFailed(ctx context.Context, p *model.PaymentEntity) (*ReconcileResult, error) {
	defer logging.TraceDuration(r.log, "ReconcileUC.ApplyPaymentFailed")()
	res, err := r.apply(ctx, "payment.failed",
		func(ctx context.Context) (*model.User, error) { return r.locator.FindOwner(ctx, p.OrderID) },
		func(u *model.User, now time.Time) (mutation, error) {
			o := u.FindOrder(p.OrderID)
			if o == nil {
				return mutation{}, domain.ErrOrderNotFound
			}
			// completed never regresses; a repeated failure is already recorded
			if o.IsCompleted() || (o.PaymentStatus == model.PaymentStatusFailed && detailID(o.FailureDetails) == p.ID) {
				return mutation{order: o}, nil
			}
			o.PaymentStatus = model.PaymentStatusFailed
			o.FailureDetails = p.Raw
			o.UpdatedAt = now
			return mutation{changed: true, status: "failed", order: o}, nil
		},
	)
	res.OrderID, res.PaymentID = p.OrderID, p.ID
	return res, err
}

func (r *reconcileUC) ApplyRefund(ctx context.Context, rf *model.RefundEntity) (*ReconcileResult, error) {
	defer logging.TraceDuration(r.log, "ReconcileUC.ApplyRefund")()
	res, err := r.apply(ctx, "refund.created",
		func(ctx context.Context) (*model.User, error) { return r.locator.FindByPayment(ctx, rf.PaymentID, rf.OrderID) },
		func(u *model.User, now time.Time) (mutation, error) {
			o := u.FindOrderByPaymentID(rf.PaymentID)
			if o == nil {
				return mutation{}, domain.ErrOrderNotFound
			}
			if o.IsRefunded() && o.RefundID == rf.ID {
				return mutation{order: o}, nil
			}
			o.RefundStatus = model.RefundStatusRefunded
			o.RefundID = rf.ID
			o.RefundDetails = rf.Raw
			refundedAt := now
			o.RefundedAt = &refundedAt
			o.UpdatedAt = now
			return mutation{changed: true, status: "refunded", order: o}, nil
		},
	)
	res.PaymentID = rf.PaymentID
	if res.Order != nil {
		res.OrderID = res.Order.OrderID
	}
	return res, err
}

func (r *reconcileUC) RegisterOrder(ctx context.Context, userID string, order model.Order) (*ReconcileResult, error) {
	res, err := r.apply(ctx, "order.register",
		func(ctx context.Context) (*model.User, error) { return r.users.FindByID(ctx, userID) },
		func(u *model.User, now time.Time) (mutation, error) {
			if !u.AppendOrder(order) {
				return mutation{order: u.FindOrder(order.OrderID)}, nil
			}
			return mutation{changed: true, status: "created", order: u.FindOrder(order.OrderID)}, nil
		},
	)
	res.OrderID = order.OrderID
	if err == nil && res.Outcome == model.AuditUnresolved {
		return res, domain.ErrNotFound
	}
	return res, err
}

func (r *reconcileUC) ExpirePremium(ctx context.Context, userID string, now time.Time) (*ReconcileResult, error) {
	res, err := r.apply(ctx, "premium.expire",
		func(ctx context.Context) (*model.User, error) { return r.users.FindByID(ctx, userID) },
		func(u *model.User, _ time.Time) (mutation, error) {
			if !u.PremiumExpired(now) {
				return mutation{}, nil
			}
			// the snapshot stays as purchase history
			u.IsPremium = false
			return mutation{changed: true}, nil
		},
	)
	if err == nil && res.Outcome == model.AuditUnresolved {
		return res, domain.ErrNotFound
	}
	if res.Changed {
		metrics.IncPremiumExpired(1)
	}
	return res, err
}

// completeOrder moves orderID to completed and grants premium when the order
// notes carry a plan purchase. The order entity is nil for payment events.
func (r *reconcileUC) completeOrder(orderID string, p *model.PaymentEntity, oe *model.OrderEntity) mutateFunc {
	return func(u *model.User, now time.Time) (mutation, error) {
		o := u.FindOrder(orderID)
		if o == nil {
			return mutation{}, domain.ErrOrderNotFound
		}
		if o.IsCompleted() {
			return mutation{order: o}, nil
		}

		o.PaymentStatus = model.PaymentStatusCompleted
		o.PaymentID = p.ID
		o.PaymentDetails = p.Raw
		if oe != nil {
			o.OrderDetails = oe.Raw
			if oe.Status != "" {
				o.Status = oe.Status
			}
		}
		o.FailureDetails = nil
		o.UpdatedAt = now
		u.AddPaymentID(p.ID)

		m := mutation{changed: true, completed: true, status: "completed", order: o}

		notes := o.Notes
		if _, ok := notes["planDetails"]; !ok {
			notes = p.Notes
		}
		if d, ok := model.ParsePlanDetails(notes); ok {
			plan := d.Snapshot(now, r.opts.Defaults)
			u.IsPremium = true
			u.PremiumPlan = &plan
			m.upgraded = true
		}
		return m, nil
	}
}

func (r *reconcileUC) apply(ctx context.Context, op string, locate locateFunc, mutate mutateFunc) (*ReconcileResult, error) {
	start := time.Now()
	res := &ReconcileResult{}
	defer func() { metrics.ObserveReconcile(op, string(res.Outcome), time.Since(start)) }()

	log := logging.With(ctx, r.log).With().Str("op", op).Logger()
	var lastErr error
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := r.backoff(ctx, attempt-1); err != nil {
				lastErr = err
				break
			}
		}

		u, err := locate(ctx)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && u == nil) {
			res.Outcome = model.AuditUnresolved
			log.Info().Msg("no user owns this event")
			return res, nil
		}
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("locate failed")
			continue
		}

		u = u.Clone()
		res.UserID = u.ID
		now := time.Now()
		m, err := mutate(u, now)
		if errors.Is(err, domain.ErrOrderNotFound) {
			res.Outcome = model.AuditUnresolved
			log.Info().Str("user_id", u.ID).Msg("user has no matching order")
			return res, nil
		}
		if err != nil {
			res.Outcome = model.AuditWriteFailed
			return res, err
		}
		if !m.changed {
			res.Outcome = model.AuditNoop
			res.User = u
			res.Order = copyOrder(m.order)
			return res, nil
		}

		expected := u.Version
		u.UpdatedAt = now
		u.Reindex()
		if err := r.users.CompareAndSwap(ctx, u, expected); err != nil {
			lastErr = err
			if errors.Is(err, domain.ErrVersionConflict) {
				metrics.IncReconcileConflict()
				log.Debug().Int("attempt", attempt+1).Int64("version", expected).Msg("version conflict, re-reading")
			} else {
				log.Warn().Err(err).Int("attempt", attempt+1).Msg("write failed")
			}
			continue
		}

		res.Outcome = model.AuditProcessed
		res.Changed, res.Completed, res.Upgraded = true, m.completed, m.upgraded
		res.User = u
		res.Order = copyOrder(m.order)
		r.committed(ctx, &log, u, m)
		return res, nil
	}

	res.Outcome = model.AuditWriteFailed
	log.Error().Err(lastErr).Int("attempts", r.opts.MaxAttempts).Msg("reconciliation gave up")
	return res, fmt.Errorf("%w: %s after %d attempts: %w", domain.ErrOperationFailed, op, r.opts.MaxAttempts, lastErr)
}

func (r *reconcileUC) committed(ctx context.Context, log *zerolog.Logger, u *model.User, m mutation) {
	if m.status != "" {
		metrics.IncPayment(m.status)
	}
	if m.completed && m.order != nil {
		metrics.AddPaymentRevenue(m.order.Currency, m.order.Amount)
	}
	if m.upgraded {
		metrics.IncPremiumUpgrade()
		log.Info().Str("user_id", u.ID).Str("plan", u.PremiumPlan.PlanTitle).Time("expiry", u.PremiumPlan.ExpiryDate).Msg("premium granted")
	}
	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, u.ID); err != nil {
			log.Warn().Err(err).Str("user_id", u.ID).Msg("order cache invalidation failed")
		}
	}
}

func (r *reconcileUC) backoff(ctx context.Context, n int) error {
	d := r.opts.BaseBackoff << n
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	d += time.Duration(rand.Int63n(int64(r.opts.BaseBackoff)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func copyOrder(o *model.Order) *model.Order {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

func detailID(m map[string]any) string {
	id, _ := m["id"].(string)
	return id
}
