package repository

import (
	"context"
	"time"

	"counselling-payments/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

// UserRepository is the document-store port for user aggregates.
// Query methods return an empty slice, not ErrNotFound, when nothing matches.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)

	// FindByOrderID matches users whose orderIds contain orderID.
	FindByOrderID(ctx context.Context, orderID string) ([]*model.User, error)
	// FindByCurrentOrderID matches users whose currentOrderId equals orderID.
	FindByCurrentOrderID(ctx context.Context, orderID string) ([]*model.User, error)
	// FindByPaymentID matches users holding an order paid by paymentID.
	FindByPaymentID(ctx context.Context, paymentID string) ([]*model.User, error)

	// Save inserts a new user with version 1. Existing ids yield ErrAlreadyExists.
	Save(ctx context.Context, u *model.User) error
	// CompareAndSwap replaces the stored document only if its version still
	// equals expectedVersion; on success u.Version becomes expectedVersion+1.
	// A stale version yields domain.ErrVersionConflict.
	CompareAndSwap(ctx context.Context, u *model.User, expectedVersion int64) error

	ListPremiumExpiredBefore(ctx context.Context, t time.Time, limit int) ([]*model.User, error)
	// ListWithPendingOrders pages through users holding pending orders in id
	// order, starting after afterID ("" for the first page).
	ListWithPendingOrders(ctx context.Context, afterID string, limit int) ([]*model.User, error)
}
