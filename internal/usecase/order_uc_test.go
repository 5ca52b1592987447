//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/adapter"
	"counselling-payments/internal/infra/security"
	"counselling-payments/internal/usecase"
)

const testKeySecret = "key_secret"

type orderUCTestDeps struct {
	users    *MockUserRepo
	gateway  *MockPaymentGateway
	cache    *MockOrderCache
	notifier *MockNotifier
	limiter  *MockLimiter
}

func newOrderUC(deps *orderUCTestDeps) usecase.OrderUseCase {
	locator := usecase.NewOrderLocator(deps.users, newTestLogger())
	reconcile := usecase.NewReconcileUseCase(deps.users, locator, deps.cache,
		usecase.ReconcileOptions{MaxAttempts: 3, BaseBackoff: time.Millisecond, Defaults: testDefaults}, newTestLogger())
	return usecase.NewOrderUseCase(deps.users, deps.gateway, reconcile, locator, deps.notifier, deps.cache, deps.limiter,
		usecase.OrderOptions{KeySecret: testKeySecret, CreateLimit: 10, CreateWindow: time.Minute}, newTestLogger())
}

func newOrderDeps(users ...*model.User) *orderUCTestDeps {
	return &orderUCTestDeps{
		users:    NewMockUserRepo(users...),
		gateway:  &MockPaymentGateway{},
		cache:    NewMockOrderCache(),
		notifier: &MockNotifier{},
		limiter:  &MockLimiter{Allowed: true},
	}
}

func TestOrderUseCase_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("should create a gateway order in paise and record it as pending", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrderDeps(&model.User{ID: "user-1", Phone: "1"})
		var sent adapter.CreateOrderRequest
		deps.gateway.CreateOrderFunc = func(ctx context.Context, req adapter.CreateOrderRequest) (*model.OrderEntity, error) {
			sent = req
			return &model.OrderEntity{ID: "order_A", Amount: req.Amount, Currency: req.Currency, Status: "created"}, nil
		}
		uc := newOrderUC(deps)

		// --- Act ---
		order, err := uc.CreateOrder(ctx, usecase.CreateOrderInput{
			UserID: "user-1",
			Amount: 499.99,
			Notes:  map[string]any{"planDetails": `{"plan":"X","expiry":30}`},
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if sent.Amount != 49999 || sent.Currency != "INR" || sent.Receipt == "" {
			t.Errorf("unexpected gateway request: %+v", sent)
		}
		if order.OrderID != "order_A" || order.Amount != 499.99 || order.PaymentStatus != model.PaymentStatusPending {
			t.Errorf("unexpected order: %+v", order)
		}
		u := deps.users.Get("user-1")
		if u.CurrentOrderID != "order_A" || len(u.OrderIDs) != 1 || u.Orders[0].Notes["planDetails"] == nil {
			t.Errorf("expected the order and its notes on the user, but got %+v", u)
		}
	})

	t.Run("should reject invalid amounts", func(t *testing.T) {
		uc := newOrderUC(newOrderDeps(&model.User{ID: "user-1"}))
		if _, err := uc.CreateOrder(ctx, usecase.CreateOrderInput{UserID: "user-1", Amount: 0}); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, but got %v", err)
		}
	})

	t.Run("should refuse when rate limited", func(t *testing.T) {
		deps := newOrderDeps(&model.User{ID: "user-1"})
		deps.limiter.Allowed = false
		uc := newOrderUC(deps)
		if _, err := uc.CreateOrder(ctx, usecase.CreateOrderInput{UserID: "user-1", Amount: 10}); !errors.Is(err, domain.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, but got %v", err)
		}
	})

	t.Run("should not call the gateway for an unknown user", func(t *testing.T) {
		deps := newOrderDeps()
		called := false
		deps.gateway.CreateOrderFunc = func(ctx context.Context, req adapter.CreateOrderRequest) (*model.OrderEntity, error) {
			called = true
			return nil, errors.New("unexpected")
		}
		uc := newOrderUC(deps)

		_, err := uc.CreateOrder(ctx, usecase.CreateOrderInput{UserID: "ghost", Amount: 10})

		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, but got %v", err)
		}
		if called {
			t.Error("expected the gateway not to be called")
		}
	})
}

func TestOrderUseCase_VerifyCheckout(t *testing.T) {
	ctx := context.Background()
	sig := security.Sign([]byte("o1|pay_1"), testKeySecret)

	t.Run("should verify the signature and complete the order", func(t *testing.T) {
		// --- Arrange ---
		deps := newOrderDeps(pendingUser("user-1", "o1", map[string]any{"planDetails": `{"plan":"X","expiry":30}`}))
		deps.gateway.FetchPaymentFunc = func(ctx context.Context, id string) (*model.PaymentEntity, error) {
			return captured("o1", id), nil
		}
		uc := newOrderUC(deps)

		// --- Act ---
		res, err := uc.VerifyCheckout(ctx, usecase.VerifyCheckoutInput{UserID: "user-1", OrderID: "o1", PaymentID: "pay_1", Signature: sig})

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !res.Completed || !res.Upgraded {
			t.Errorf("expected completion with upgrade, but got %+v", res)
		}
		if len(deps.notifier.Calls) != 1 {
			t.Errorf("expected one notification, but got %d", len(deps.notifier.Calls))
		}
	})

	t.Run("should not notify twice when the webhook already completed the order", func(t *testing.T) {
		deps := newOrderDeps(pendingUser("user-1", "o1", nil))
		deps.gateway.FetchPaymentFunc = func(ctx context.Context, id string) (*model.PaymentEntity, error) {
			return captured("o1", id), nil
		}
		uc := newOrderUC(deps)
		in := usecase.VerifyCheckoutInput{UserID: "user-1", OrderID: "o1", PaymentID: "pay_1", Signature: sig}
		_, _ = uc.VerifyCheckout(ctx, in)

		res, err := uc.VerifyCheckout(ctx, in)

		if err != nil || res.Outcome != model.AuditNoop {
			t.Errorf("expected noop, but got %v / %v", res, err)
		}
		if len(deps.notifier.Calls) != 1 {
			t.Errorf("expected one notification overall, but got %d", len(deps.notifier.Calls))
		}
	})

	cases := []struct {
		name    string
		in      usecase.VerifyCheckoutInput
		payment *model.PaymentEntity
		want    error
	}{
		{"bad signature", usecase.VerifyCheckoutInput{UserID: "user-1", OrderID: "o1", PaymentID: "pay_1", Signature: "00"}, nil, domain.ErrInvalidPaymentSignature},
		{"missing fields", usecase.VerifyCheckoutInput{UserID: "user-1", OrderID: "o1"}, nil, domain.ErrInvalidArgument},
		{"other user", usecase.VerifyCheckoutInput{UserID: "user-2", OrderID: "o1", PaymentID: "pay_1", Signature: sig}, nil, domain.ErrForbidden},
		{"payment for another order", usecase.VerifyCheckoutInput{UserID: "user-1", OrderID: "o1", PaymentID: "pay_1", Signature: sig}, captured("o2", "pay_1"), domain.ErrPaymentMismatch},
		{"failed payment", usecase.VerifyCheckoutInput{UserID: "user-1", OrderID: "o1", PaymentID: "pay_1", Signature: sig}, &model.PaymentEntity{ID: "pay_1", OrderID: "o1", Status: "failed"}, domain.ErrPaymentNotCaptured},
	}
	for _, tc := range cases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			deps := newOrderDeps(pendingUser("user-1", "o1", nil))
			deps.gateway.FetchPaymentFunc = func(ctx context.Context, id string) (*model.PaymentEntity, error) {
				return tc.payment, nil
			}
			uc := newOrderUC(deps)

			_, err := uc.VerifyCheckout(ctx, tc.in)

			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, but got %v", tc.want, err)
			}
			if deps.users.Get("user-1").Orders[0].PaymentStatus != model.PaymentStatusPending {
				t.Error("expected the order to stay pending")
			}
		})
	}
}

func TestOrderUseCase_ListOrdersDropsListReadBeforeACommit(t *testing.T) {
	// --- Arrange ---
	ctx := context.Background()
	deps := newOrderDeps(pendingUser("user-1", "o1", nil))
	reads := 0
	deps.users.FindByIDFunc = func(ctx context.Context, id string) (*model.User, error) {
		reads++
		u := deps.users.Get(id)
		if reads > 1 {
			// a capture committed and invalidated between the read and the cache write
			u.Version++
			u.Orders[0].PaymentStatus = model.PaymentStatusCompleted
		}
		return u, nil
	}
	uc := newOrderUC(deps)

	// --- Act ---
	orders, err := uc.ListOrders(ctx, "user-1")

	// --- Assert ---
	if err != nil || len(orders) != 1 {
		t.Fatalf("expected one order, but got %d / %v", len(orders), err)
	}
	if _, ok, _ := deps.cache.GetOrders(ctx, "user-1"); ok {
		t.Error("expected the list read before the commit not to stay cached")
	}
	if !slices.Contains(deps.cache.Invalidated, "user-1") {
		t.Errorf("expected user-1 invalidated, but got %v", deps.cache.Invalidated)
	}
}

func TestOrderUseCase_ListOrders(t *testing.T) {
	ctx := context.Background()
	seed := pendingUser("user-1", "o1", nil)
	seed.Orders = append(seed.Orders, model.Order{OrderID: "o0", PaymentStatus: model.PaymentStatusCompleted, PaymentID: "pay_0"})
	deps := newOrderDeps(seed)
	reads := 0
	deps.users.FindByIDFunc = func(ctx context.Context, id string) (*model.User, error) {
		reads++
		return deps.users.Get(id), nil
	}
	uc := newOrderUC(deps)

	orders, err := uc.ListOrders(ctx, "user-1")
	if err != nil || len(orders) != 2 {
		t.Fatalf("expected two orders, but got %d / %v", len(orders), err)
	}
	if _, err := uc.ListOrders(ctx, "user-1"); err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	if reads != 2 {
		t.Errorf("expected one read plus one version check, then a cache hit, but got %d store reads", reads)
	}

	paid, err := uc.ListCompletedPayments(ctx, "user-1")
	if err != nil || len(paid) != 1 || paid[0].OrderID != "o0" {
		t.Errorf("expected only the completed order, but got %+v / %v", paid, err)
	}

	if _, err := uc.GetOrder(ctx, "user-1", "nope"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, but got %v", err)
	}
	if uc.GatewayKey() != "rzp_test_key" {
		t.Errorf("unexpected gateway key %q", uc.GatewayKey())
	}
}
