package repository

import (
	"context"

	"counselling-payments/internal/domain/model"
)

// DeliveryDeduper remembers gateway delivery ids for a bounded window.
// A claim that is never confirmed lapses on its own, so a delivery lost
// mid-processing is handled again when the gateway retries it.
type DeliveryDeduper interface {
	// Claim reserves eventID for processing and reports whether no other
	// claim or confirmation holds it.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Confirm keeps eventID for the full dedupe window after processing
	// reached a terminal outcome.
	Confirm(ctx context.Context, eventID string) error
	// Forget drops eventID so a redelivery is processed again.
	Forget(ctx context.Context, eventID string) error
}

// OrderCache is a read-side cache of a user's order list.
type OrderCache interface {
	GetOrders(ctx context.Context, userID string) ([]model.Order, bool, error)
	SetOrders(ctx context.Context, userID string, orders []model.Order) error
	Invalidate(ctx context.Context, userID string) error
}
