package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for local runs and tests.
// Orders stay "created" until MarkPaid records a captured payment.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	orders   map[string]*model.OrderEntity
	payments map[string]*model.PaymentEntity
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		orders:   make(map[string]*model.OrderEntity),
		payments: make(map[string]*model.PaymentEntity),
	}
}

func (g *NoopPaymentGateway) Name() string  { return "noop" }
func (g *NoopPaymentGateway) KeyID() string { return "rzp_test_noop" }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_noop%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, req adapter.CreateOrderRequest) (*model.OrderEntity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := &model.OrderEntity{
		ID:        g.next("order"),
		Amount:    req.Amount,
		AmountDue: req.Amount,
		Currency:  req.Currency,
		Receipt:   req.Receipt,
		Status:    "created",
		CreatedAt: time.Now().Unix(),
		Notes:     req.Notes,
	}
	g.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

// MarkPaid simulates a successful checkout and returns the payment.
func (g *NoopPaymentGateway) MarkPaid(orderID string) (*model.PaymentEntity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p := &model.PaymentEntity{
		ID:        g.next("pay"),
		OrderID:   orderID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Status:    "captured",
		Method:    "upi",
		CreatedAt: time.Now().Unix(),
		Notes:     o.Notes,
		Raw:       map[string]any{"id": "", "order_id": orderID, "status": "captured"},
	}
	p.Raw["id"] = p.ID
	g.payments[p.ID] = p
	o.Status, o.AmountPaid, o.AmountDue = "paid", o.Amount, 0
	o.Attempts++
	return p, nil
}

func (g *NoopPaymentGateway) FetchOrder(ctx context.Context, orderID string) (*model.OrderEntity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (g *NoopPaymentGateway) FetchPayment(ctx context.Context, paymentID string) (*model.PaymentEntity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (g *NoopPaymentGateway) FetchOrderPayments(ctx context.Context, orderID string) ([]*model.PaymentEntity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := []*model.PaymentEntity{}
	for _, p := range g.payments {
		if p.OrderID == orderID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}
