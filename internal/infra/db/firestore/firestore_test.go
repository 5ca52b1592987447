//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"counselling-payments/internal/config"
	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
)

// These tests run against the Firestore emulator only.
func newEmulatorRepo(t *testing.T) *UserRepo {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := NewClient(context.Background(), config.FirestoreConfig{ProjectID: "demo-counselling"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewUserRepo(client, "users_"+uuid.NewString()[:8])
}

func TestUserRepo_Emulator(t *testing.T) {
	repo := newEmulatorRepo(t)
	ctx := context.Background()

	u, _ := model.NewUser("user-1", "Test", "1", "")
	if err := repo.Save(ctx, u); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Save(ctx, u); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists, got %v", err)
	}

	got, err := repo.FindByID(ctx, "user-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	got.AppendOrder(model.Order{OrderID: "order_A", PaymentStatus: model.PaymentStatusPending, CreatedAt: time.Now()})
	if err := repo.CompareAndSwap(ctx, got, 1); err != nil {
		t.Fatalf("CAS failed: %v", err)
	}
	if err := repo.CompareAndSwap(ctx, got, 1); !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict, got %v", err)
	}

	owners, err := repo.FindByOrderID(ctx, "order_A")
	if err != nil || len(owners) != 1 || owners[0].ID != "user-1" {
		t.Errorf("Expected user-1 to own order_A, got %v (%v)", owners, err)
	}
	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestUserRepo_EmulatorLegacyDocument(t *testing.T) {
	repo := newEmulatorRepo(t)
	ctx := context.Background()

	// written by the app before the service owned any fields
	_, err := repo.users.Doc("legacy-1").Set(ctx, map[string]any{
		"name":             "Legacy",
		"phone":            "9000000001",
		"registrationData": map[string]any{"college": "X"},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	u, err := repo.FindByID(ctx, "legacy-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if u.Version != 0 {
		t.Fatalf("Expected version 0 for a legacy document, got %d", u.Version)
	}
	u.AppendOrder(model.Order{OrderID: "order_L", PaymentStatus: model.PaymentStatusPending, CreatedAt: time.Now()})

	if err := repo.CompareAndSwap(ctx, u, 0); err != nil {
		t.Fatalf("CAS on a legacy document failed: %v", err)
	}
	if u.Version != 1 {
		t.Errorf("Expected version 1 after CAS, got %d", u.Version)
	}
	snap, err := repo.users.Doc("legacy-1").Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := snap.DataAt("registrationData.college"); err != nil {
		t.Errorf("Expected registrationData to survive the write, got %v", err)
	}
	if err := repo.CompareAndSwap(ctx, u, 0); !errors.Is(err, domain.ErrVersionConflict) {
		t.Errorf("Expected ErrVersionConflict on a replayed version, got %v", err)
	}
}

func TestUserRepo_EmulatorPendingPages(t *testing.T) {
	repo := newEmulatorRepo(t)
	ctx := context.Background()

	for _, id := range []string{"user-a", "user-b", "user-c"} {
		u, _ := model.NewUser(id, "Test", id, "")
		if err := repo.Save(ctx, u); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		u.AppendOrder(model.Order{OrderID: "order_" + id, PaymentStatus: model.PaymentStatusPending, CreatedAt: time.Now()})
		if err := repo.CompareAndSwap(ctx, u, 1); err != nil {
			t.Fatalf("CAS failed: %v", err)
		}
	}

	first, err := repo.ListWithPendingOrders(ctx, "", 2)
	if err != nil || len(first) != 2 {
		t.Fatalf("Expected a first page of 2, got %d (%v)", len(first), err)
	}
	rest, err := repo.ListWithPendingOrders(ctx, first[1].ID, 2)
	if err != nil || len(rest) != 1 || rest[0].ID != "user-c" {
		t.Errorf("Expected user-c on the second page, got %v (%v)", rest, err)
	}
}
