package repository

import (
	"context"

	"counselling-payments/internal/domain/model"
)

// -----------------------------
// Payment audit log
// -----------------------------

// PaymentLogRepository is append-only. Nothing in the request path reads it.
type PaymentLogRepository interface {
	Append(ctx context.Context, e *model.PaymentLogEntry) error
}
