package usecase

import (
	"context"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ OrderLocator = (*orderLocator)(nil)

// OrderLocator resolves which user document owns a gateway order or payment.
type OrderLocator interface {
	// FindOwner looks orderID up in orderIds first and falls back to
	// currentOrderId for documents written before the index existed.
	FindOwner(ctx context.Context, orderID string) (*model.User, error)
	// FindByPayment returns the user holding an order paid by paymentID.
	// orderID, when known, is used if the paymentIds index has no match.
	FindByPayment(ctx context.Context, paymentID, orderID string) (*model.User, error)
}

type orderLocator struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewOrderLocator(users repository.UserRepository, logger *zerolog.Logger) *orderLocator {
	l := logger.With().Str("component", "OrderLocator").Logger()
	return &orderLocator{users: users, log: &l}
}

func (l *orderLocator) FindOwner(ctx context.Context, orderID string) (*model.User, error) {
	if orderID == "" {
		return nil, domain.ErrNotFound
	}

	users, err := l.users.FindByOrderID(ctx, orderID)
	if err != nil {
		// The membership query needs an index that may still be building;
		// the fallback query is cheap enough to try anyway.
		l.log.Warn().Err(err).Str("order_id", orderID).Msg("orderIds lookup failed, trying currentOrderId")
	}
	if u := l.pick(users, orderID); u != nil {
		return u, nil
	}

	users, err = l.users.FindByCurrentOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if u := l.pick(users, orderID); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (l *orderLocator) FindByPayment(ctx context.Context, paymentID, orderID string) (*model.User, error) {
	if paymentID == "" {
		return nil, domain.ErrNotFound
	}
	users, err := l.users.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return l.findByPaidOrder(ctx, paymentID, orderID)
	}
	if len(users) > 1 {
		l.log.Warn().Str("payment_id", paymentID).Int("matches", len(users)).Msg("payment id held by several users, using first")
	}
	return users[0], nil
}

// findByPaidOrder covers documents whose paymentIds was never written:
// the owner of orderID qualifies only if that order carries paymentID.
func (l *orderLocator) findByPaidOrder(ctx context.Context, paymentID, orderID string) (*model.User, error) {
	if orderID == "" {
		return nil, domain.ErrNotFound
	}
	u, err := l.FindOwner(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o := u.FindOrderByPaymentID(paymentID); o == nil || o.OrderID != orderID {
		return nil, domain.ErrNotFound
	}
	l.log.Info().Str("payment_id", paymentID).Str("order_id", orderID).Msg("payment located through its order")
	return u, nil
}

// pick prefers a match that actually carries the order sub-record.
func (l *orderLocator) pick(users []*model.User, orderID string) *model.User {
	if len(users) == 0 {
		return nil
	}
	if len(users) > 1 {
		l.log.Warn().Str("order_id", orderID).Int("matches", len(users)).Msg("order id held by several users")
	}
	for _, u := range users {
		if u.FindOrder(orderID) != nil {
			return u
		}
	}
	return users[0]
}
