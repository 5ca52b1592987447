package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/logging"
	"counselling-payments/internal/infra/metrics"
	"counselling-payments/internal/infra/security"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type OrderUseCase interface {
	// CreateOrder opens a gateway order and records it as pending on the user.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error)
	// GetGatewayOrder fetches the live gateway view of one of the user's orders.
	GetGatewayOrder(ctx context.Context, userID, orderID string) (*model.OrderEntity, error)
	// VerifyCheckout checks the client checkout signature and reconciles the
	// payment the same way a capture webhook would.
	VerifyCheckout(ctx context.Context, in VerifyCheckoutInput) (*ReconcileResult, error)
	ListOrders(ctx context.Context, userID string) ([]model.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListCompletedPayments(ctx context.Context, userID string) ([]model.Order, error)
	GatewayKey() string
}

type CreateOrderInput struct {
	UserID   string
	Amount   float64 // major units
	Currency string
	Receipt  string
	Notes    map[string]any
}

type VerifyCheckoutInput struct {
	UserID    string
	OrderID   string
	PaymentID string
	Signature string
}

// RateLimiter is satisfied by the redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type OrderOptions struct {
	KeySecret       string // checkout signature secret
	DefaultCurrency string
	CreateLimit     int
	CreateWindow    time.Duration
}

type orderUC struct {
	users     repository.UserRepository
	gateway   adapter.PaymentGateway
	reconcile ReconcileUseCase
	locator   OrderLocator
	notify    NotificationUseCase
	cache     repository.OrderCache // optional
	limiter   RateLimiter           // optional
	opts      OrderOptions
	log       *zerolog.Logger
}

func NewOrderUseCase(
	users repository.UserRepository,
	gateway adapter.PaymentGateway,
	reconcile ReconcileUseCase,
	locator OrderLocator,
	notify NotificationUseCase,
	cache repository.OrderCache,
	limiter RateLimiter,
	opts OrderOptions,
	logger *zerolog.Logger,
) *orderUC {
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "INR"
	}
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{
		users:     users,
		gateway:   gateway,
		reconcile: reconcile,
		locator:   locator,
		notify:    notify,
		cache:     cache,
		limiter:   limiter,
		opts:      opts,
		log:       &l,
	}
}

func (u *orderUC) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	defer logging.TraceDuration(u.log, "OrderUC.CreateOrder")()
	if in.UserID == "" || in.Amount <= 0 || math.IsInf(in.Amount, 0) || math.IsNaN(in.Amount) {
		return nil, domain.ErrInvalidArgument
	}
	if err := u.allow(ctx, in.UserID); err != nil {
		return nil, err
	}

	// the user must exist before the gateway is asked for anything
	user, err := u.users.FindByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = u.opts.DefaultCurrency
	}
	receipt := in.Receipt
	if receipt == "" {
		receipt = "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	}

	entity, err := u.gateway.CreateOrder(ctx, adapter.CreateOrderRequest{
		Amount:   int64(math.Round(in.Amount * 100)),
		Currency: currency,
		Receipt:  receipt,
		Notes:    in.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}
	if len(entity.Notes) == 0 {
		entity.Notes = in.Notes
	}

	order := model.NewPendingOrder(entity, time.Now())
	res, err := u.reconcile.RegisterOrder(ctx, in.UserID, order)
	if err != nil {
		// the gateway order exists but is not recorded; the webhook will find no owner
		logging.With(ctx, u.log).Error().Err(err).Str("order_id", entity.ID).Msg("created gateway order could not be recorded")
		return nil, err
	}
	if res.Order != nil {
		order = *res.Order
	}
	logging.With(ctx, u.log).Info().Str("order_id", order.OrderID).Float64("amount", order.Amount).Msg("order created")
	return &order, nil
}

func (u *orderUC) GetGatewayOrder(ctx context.Context, userID, orderID string) (*model.OrderEntity, error) {
	if _, err := u.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}
	return u.gateway.FetchOrder(ctx, orderID)
}

func (u *orderUC) VerifyCheckout(ctx context.Context, in VerifyCheckoutInput) (res *ReconcileResult, err error) {
	defer logging.TraceDuration(u.log, "OrderUC.VerifyCheckout")()
	start := time.Now()
	reason := ""
	defer func() { metrics.ObserveCheckoutVerify(reason, time.Since(start)) }()

	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		reason = "bad_json"
		return nil, domain.ErrInvalidArgument
	}
	if !security.VerifyCheckoutSignature(in.OrderID, in.PaymentID, in.Signature, u.opts.KeySecret) {
		reason = "bad_signature"
		return nil, domain.ErrInvalidPaymentSignature
	}

	owner, err := u.locator.FindOwner(ctx, in.OrderID)
	if err != nil {
		reason = "not_found"
		return nil, err
	}
	if owner.ID != in.UserID {
		reason = "mismatch"
		return nil, domain.ErrForbidden
	}

	payment, err := u.gateway.FetchPayment(ctx, in.PaymentID)
	if err != nil {
		reason = "gateway_error"
		return nil, fmt.Errorf("gateway fetch payment: %w", err)
	}
	if payment.OrderID != in.OrderID {
		reason = "mismatch"
		return nil, domain.ErrPaymentMismatch
	}
	if payment.Status != "captured" && payment.Status != "authorized" {
		reason = "not_captured"
		return nil, fmt.Errorf("%w: status %q", domain.ErrPaymentNotCaptured, payment.Status)
	}

	res, err = u.reconcile.ApplyPaymentCaptured(ctx, payment)
	if err != nil {
		reason = "store_error"
		return res, err
	}
	if res.Outcome == model.AuditUnresolved {
		reason = "not_found"
		return res, domain.ErrOrderNotFound
	}
	if res.Completed {
		u.notify.Dispatch(ctx, res.User, res.Order)
	}
	return res, nil
}

func (u *orderUC) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	if u.cache != nil {
		orders, ok, err := u.cache.GetOrders(ctx, userID)
		if err != nil {
			logging.With(ctx, u.log).Warn().Err(err).Msg("order cache read failed")
		} else if ok {
			metrics.IncCacheRequest("orders", "hit")
			return orders, nil
		}
		metrics.IncCacheRequest("orders", "miss")
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	orders := user.Orders
	if orders == nil {
		orders = []model.Order{}
	}
	if u.cache != nil {
		u.fillCache(ctx, user, orders)
	}
	return orders, nil
}

// fillCache stores the list read at user.Version, then re-reads the version.
// A commit that landed in between may have run its invalidation before our
// write, so a moved version drops the entry again.
func (u *orderUC) fillCache(ctx context.Context, user *model.User, orders []model.Order) {
	log := logging.With(ctx, u.log)
	if err := u.cache.SetOrders(ctx, user.ID, orders); err != nil {
		log.Warn().Err(err).Msg("order cache write failed")
		return
	}
	current, err := u.users.FindByID(ctx, user.ID)
	if err == nil && current != nil && current.Version == user.Version {
		return
	}
	if err := u.cache.Invalidate(ctx, user.ID); err != nil {
		log.Warn().Err(err).Msg("order cache invalidation failed")
	}
}

func (u *orderUC) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	orders, err := u.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].OrderID == orderID {
			o := orders[i]
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (u *orderUC) ListCompletedPayments(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := u.ListOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.IsCompleted() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (u *orderUC) GatewayKey() string { return u.gateway.KeyID() }

func (u *orderUC) allow(ctx context.Context, userID string) error {
	if u.limiter == nil || u.opts.CreateLimit <= 0 {
		return nil
	}
	ok, err := u.limiter.Allow(ctx, "rate_limit:create_order:"+userID, u.opts.CreateLimit, u.opts.CreateWindow)
	if err != nil {
		// fail open: the gateway enforces its own limits
		logging.With(ctx, u.log).Warn().Err(err).Msg("rate limiter unavailable")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}
