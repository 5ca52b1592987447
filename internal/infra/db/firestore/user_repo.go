package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/metrics"
)

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo keeps one document per user. CompareAndSwap runs a single-attempt
// transaction so version conflicts reach the caller's retry loop instead of
// being replayed blindly by the client library.
type UserRepo struct {
	client *firestore.Client
	users  *firestore.CollectionRef
}

func NewUserRepo(client *firestore.Client, collection string) *UserRepo {
	return &UserRepo{client: client, users: client.Collection(collection)}
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (_ *model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_id", time.Now(), &err)
	snap, err := r.users.Doc(id).Get(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return decodeUser(snap)
}

func (r *UserRepo) FindByPhone(ctx context.Context, phone string) (_ *model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_phone", time.Now(), &err)
	users, err := r.query(ctx, r.users.Where("phone", "==", phone).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, domain.ErrNotFound
	}
	return users[0], nil
}

func (r *UserRepo) FindByOrderID(ctx context.Context, orderID string) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_order", time.Now(), &err)
	return r.query(ctx, r.users.Where("orderIds", "array-contains", orderID))
}

func (r *UserRepo) FindByCurrentOrderID(ctx context.Context, orderID string) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_current_order", time.Now(), &err)
	return r.query(ctx, r.users.Where("currentOrderId", "==", orderID))
}

func (r *UserRepo) FindByPaymentID(ctx context.Context, paymentID string) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_payment", time.Now(), &err)
	return r.query(ctx, r.users.Where("paymentIds", "array-contains", paymentID))
}

func (r *UserRepo) Save(ctx context.Context, u *model.User) (err error) {
	defer metrics.ObserveStoreOp(storeName, "save", time.Now(), &err)
	if u.IsZero() {
		return domain.ErrInvalidArgument
	}
	u.Version = 1
	if _, err := r.users.Doc(u.ID).Create(ctx, u); err != nil {
		return translate(err)
	}
	return nil
}

func (r *UserRepo) CompareAndSwap(ctx context.Context, u *model.User, expectedVersion int64) (err error) {
	defer metrics.ObserveStoreOp(storeName, "cas", time.Now(), &err)
	ref := r.users.Doc(u.ID)
	next := *u
	next.Version = expectedVersion + 1

	err = r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return translate(err)
		}
		current, err := storedVersion(snap)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return domain.ErrVersionConflict
		}
		return tx.Set(ref, ownedFields(&next), firestore.MergeAll)
	}, firestore.MaxAttempts(1))
	if err != nil {
		if status.Code(err) == codes.Aborted {
			// another transaction touched the document first
			return domain.ErrVersionConflict
		}
		return err
	}
	u.Version = next.Version
	return nil
}

// storedVersion reads the CAS counter. Documents written before the counter
// existed carry no version field and count as version 0, matching what
// decodeUser yields for them.
func storedVersion(snap *firestore.DocumentSnapshot) (int64, error) {
	raw, ok := snap.Data()["version"]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	}
	return 0, fmt.Errorf("%w: user %s: version has type %T", domain.ErrReadDatabaseRow, snap.Ref.ID, raw)
}

// ownedFields lists the fields this service maintains. Writing them with
// MergeAll leaves fields owned by other clients of the collection intact.
func ownedFields(u *model.User) map[string]any {
	fields := map[string]any{
		"name":             u.Name,
		"phone":            u.Phone,
		"email":            u.Email,
		"isPremium":        u.IsPremium,
		"premiumPlan":      u.PremiumPlan,
		"orderIds":         u.OrderIDs,
		"paymentIds":       u.PaymentIDs,
		"pendingOrderIds":  u.PendingOrderIDs,
		"hasPendingOrders": u.HasPendingOrders,
		"orders":           u.Orders,
		"version":          u.Version,
		"updatedAt":        u.UpdatedAt,
	}
	if !u.CreatedAt.IsZero() {
		fields["createdAt"] = u.CreatedAt
	}
	if u.CurrentOrderID != "" {
		fields["currentOrderId"] = u.CurrentOrderID
	} else {
		fields["currentOrderId"] = firestore.Delete
	}
	return fields
}

func (r *UserRepo) ListPremiumExpiredBefore(ctx context.Context, t time.Time, limit int) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "list_expired", time.Now(), &err)
	q := r.users.Where("isPremium", "==", true).Where("premiumPlan.expiryDate", "<", t).Limit(limit)
	return r.query(ctx, q)
}

func (r *UserRepo) ListWithPendingOrders(ctx context.Context, afterID string, limit int) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "list_pending", time.Now(), &err)
	q := r.users.Where("hasPendingOrders", "==", true).OrderBy(firestore.DocumentID, firestore.Asc)
	if afterID != "" {
		q = q.StartAfter(afterID)
	}
	return r.query(ctx, q.Limit(limit))
}

func (r *UserRepo) query(ctx context.Context, q firestore.Query) ([]*model.User, error) {
	it := q.Documents(ctx)
	defer it.Stop()

	out := []*model.User{}
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, translate(err)
		}
		u, err := decodeUser(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
}

func decodeUser(snap *firestore.DocumentSnapshot) (*model.User, error) {
	var u model.User
	if err := snap.DataTo(&u); err != nil {
		return nil, fmt.Errorf("%w: user %s: %v", domain.ErrReadDatabaseRow, snap.Ref.ID, err)
	}
	u.ID = snap.Ref.ID
	return &u, nil
}

// translate maps gRPC status codes onto domain sentinels.
func translate(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return domain.ErrNotFound
	case codes.AlreadyExists:
		return domain.ErrAlreadyExists
	}
	return err
}
