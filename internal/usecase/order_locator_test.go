//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/usecase"
)

func TestOrderLocator_FindOwner(t *testing.T) {
	ctx := context.Background()

	t.Run("should prefer the orderIds index", func(t *testing.T) {
		users := NewMockUserRepo(pendingUser("user-1", "o1", nil))
		loc := usecase.NewOrderLocator(users, newTestLogger())

		u, err := loc.FindOwner(ctx, "o1")

		if err != nil || u.ID != "user-1" {
			t.Fatalf("expected user-1, but got %v / %v", u, err)
		}
	})

	t.Run("should fall back to currentOrderId", func(t *testing.T) {
		legacy := &model.User{ID: "legacy", CurrentOrderID: "o9"}
		loc := usecase.NewOrderLocator(NewMockUserRepo(legacy), newTestLogger())

		u, err := loc.FindOwner(ctx, "o9")

		if err != nil || u.ID != "legacy" {
			t.Fatalf("expected the legacy user, but got %v / %v", u, err)
		}
	})

	t.Run("should fall back when the index query errors", func(t *testing.T) {
		users := NewMockUserRepo(&model.User{ID: "legacy", CurrentOrderID: "o9"})
		users.FindByOrderIDFunc = func(ctx context.Context, orderID string) ([]*model.User, error) {
			return nil, errors.New("index not ready")
		}
		loc := usecase.NewOrderLocator(users, newTestLogger())

		if u, err := loc.FindOwner(ctx, "o9"); err != nil || u.ID != "legacy" {
			t.Fatalf("expected the legacy user, but got %v / %v", u, err)
		}
	})

	t.Run("should report not found", func(t *testing.T) {
		loc := usecase.NewOrderLocator(NewMockUserRepo(), newTestLogger())
		if _, err := loc.FindOwner(ctx, "o1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, but got %v", err)
		}
	})
}

func TestOrderLocator_FindByPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should use the paymentIds index", func(t *testing.T) {
		seed := pendingUser("user-1", "o1", nil)
		seed.Orders[0].PaymentID = "pay_1"
		seed.PaymentIDs = []string{"pay_1"}
		loc := usecase.NewOrderLocator(NewMockUserRepo(seed), newTestLogger())

		if u, err := loc.FindByPayment(ctx, "pay_1", ""); err != nil || u.ID != "user-1" {
			t.Fatalf("expected user-1, but got %v / %v", u, err)
		}
		if _, err := loc.FindByPayment(ctx, "pay_x", ""); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, but got %v", err)
		}
	})

	t.Run("should find an unindexed payment through its order", func(t *testing.T) {
		// paymentId on the order but never copied into paymentIds
		legacy := pendingUser("legacy", "o1", nil)
		legacy.Orders[0].PaymentID = "pay_1"
		legacy.Orders[0].PaymentStatus = model.PaymentStatusCompleted
		loc := usecase.NewOrderLocator(NewMockUserRepo(legacy), newTestLogger())

		u, err := loc.FindByPayment(ctx, "pay_1", "o1")

		if err != nil || u.ID != "legacy" {
			t.Fatalf("expected the legacy user, but got %v / %v", u, err)
		}
		if _, err := loc.FindByPayment(ctx, "pay_1", ""); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound without an order id, but got %v", err)
		}
	})

	t.Run("should reject an order paid by a different payment", func(t *testing.T) {
		other := pendingUser("user-1", "o1", nil)
		other.Orders[0].PaymentID = "pay_other"
		loc := usecase.NewOrderLocator(NewMockUserRepo(other), newTestLogger())

		if _, err := loc.FindByPayment(ctx, "pay_1", "o1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, but got %v", err)
		}
	})
}
