package adapter

import (
	"context"

	"counselling-payments/internal/domain/model"
)

// CreateOrderRequest is what the gateway needs to open an order.
// Amount is in minor units (paise).
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]any
}

// PaymentGateway is the hex port for the payment provider.
type PaymentGateway interface {
	Name() string
	// KeyID is the public key handed to the checkout client.
	KeyID() string

	CreateOrder(ctx context.Context, req CreateOrderRequest) (*model.OrderEntity, error)
	FetchOrder(ctx context.Context, orderID string) (*model.OrderEntity, error)
	FetchPayment(ctx context.Context, paymentID string) (*model.PaymentEntity, error)
	// FetchOrderPayments lists every payment attempt made against an order.
	FetchOrderPayments(ctx context.Context, orderID string) ([]*model.PaymentEntity, error)
}
