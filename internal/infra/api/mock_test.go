//go:build !integration

package api

import (
	"context"
	"io"
	"sync"

	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/usecase"

	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// --- Mock use cases ---

type mockWebhookUC struct {
	mu         sync.Mutex
	deliveries []usecase.Delivery
	result     *usecase.WebhookResult
	err        error
}

func (m *mockWebhookUC) Handle(ctx context.Context, d usecase.Delivery) (*usecase.WebhookResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	if m.result == nil {
		return &usecase.WebhookResult{EventType: "payment.captured", Outcome: model.AuditProcessed}, m.err
	}
	return m.result, m.err
}

func (m *mockWebhookUC) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deliveries)
}

type mockOrderUC struct {
	usecase.OrderUseCase // Embed interface; only the methods under test are overridden

	createFunc func(ctx context.Context, in usecase.CreateOrderInput) (*model.Order, error)
	verifyFunc func(ctx context.Context, in usecase.VerifyCheckoutInput) (*usecase.ReconcileResult, error)
	orders     map[string][]model.Order
	key        string
}

func (m *mockOrderUC) CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (*model.Order, error) {
	return m.createFunc(ctx, in)
}

func (m *mockOrderUC) VerifyCheckout(ctx context.Context, in usecase.VerifyCheckoutInput) (*usecase.ReconcileResult, error) {
	return m.verifyFunc(ctx, in)
}

func (m *mockOrderUC) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	return m.orders[userID], nil
}

func (m *mockOrderUC) ListCompletedPayments(ctx context.Context, userID string) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.orders[userID] {
		if o.IsCompleted() {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderUC) GatewayKey() string { return m.key }

type mockPremiumUC struct {
	usecase.PremiumUseCase

	byPhone map[string]*usecase.PremiumStatus
}

func (m *mockPremiumUC) CheckStatusByPhone(ctx context.Context, phone string) (*usecase.PremiumStatus, error) {
	if st, ok := m.byPhone[phone]; ok {
		return st, nil
	}
	return nil, errNotFoundForTest
}
