package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/metrics"
)

var _ repository.UserRepository = (*userRepo)(nil)

// userRepo stores each user as one JSONB document guarded by a version
// column. CompareAndSwap is a single conditional UPDATE.
type userRepo struct {
	db querier
}

func NewUserRepo(db querier) *userRepo {
	return &userRepo{db: db}
}

const selectUser = `SELECT id, doc, version FROM users`

func (r *userRepo) FindByID(ctx context.Context, id string) (_ *model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_id", time.Now(), &err)
	row := r.db.QueryRow(ctx, selectUser+` WHERE id=$1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

func (r *userRepo) FindByPhone(ctx context.Context, phone string) (_ *model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_phone", time.Now(), &err)
	row := r.db.QueryRow(ctx, selectUser+` WHERE phone=$1 ORDER BY created_at LIMIT 1`, phone)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return u, err
}

func (r *userRepo) FindByOrderID(ctx context.Context, orderID string) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_order", time.Now(), &err)
	return r.list(ctx, selectUser+` WHERE doc->'orderIds' @> jsonb_build_array($1::text)`, orderID)
}

func (r *userRepo) FindByCurrentOrderID(ctx context.Context, orderID string) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_current_order", time.Now(), &err)
	return r.list(ctx, selectUser+` WHERE doc->>'currentOrderId' = $1`, orderID)
}

func (r *userRepo) FindByPaymentID(ctx context.Context, paymentID string) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "find_by_payment", time.Now(), &err)
	// orders[].paymentId covers rows written before paymentIds was maintained.
	return r.list(ctx, selectUser+` WHERE doc->'paymentIds' @> jsonb_build_array($1::text)
		OR doc->'orders' @> jsonb_build_array(jsonb_build_object('paymentId', $1::text))`, paymentID)
}

func (r *userRepo) Save(ctx context.Context, u *model.User) (err error) {
	defer metrics.ObserveStoreOp(storeName, "save", time.Now(), &err)
	if u.IsZero() {
		return domain.ErrInvalidArgument
	}
	u.Version = 1
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	const q = `
INSERT INTO users (id, phone, doc, version, is_premium, premium_expires_at, has_pending_orders, created_at, updated_at)
VALUES ($1,$2,$3,1,$4,$5,$6,$7,$8)`
	_, err = r.db.Exec(ctx, q, u.ID, u.Phone, doc, u.IsPremium, premiumExpiry(u), u.HasPendingOrders, u.CreatedAt, u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrAlreadyExists
	}
	return err
}

func (r *userRepo) CompareAndSwap(ctx context.Context, u *model.User, expectedVersion int64) (err error) {
	defer metrics.ObserveStoreOp(storeName, "cas", time.Now(), &err)
	next := *u
	next.Version = expectedVersion + 1
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	const q = `
UPDATE users SET doc=$2, phone=$3, is_premium=$4, premium_expires_at=$5, has_pending_orders=$6,
       updated_at=$7, version=version+1
 WHERE id=$1 AND version=$8`
	tag, err := r.db.Exec(ctx, q, u.ID, doc, u.Phone, u.IsPremium, premiumExpiry(u), u.HasPendingOrders, u.UpdatedAt, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, u.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrVersionConflict
	}
	u.Version = next.Version
	return nil
}

func (r *userRepo) ListPremiumExpiredBefore(ctx context.Context, t time.Time, limit int) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "list_expired", time.Now(), &err)
	return r.list(ctx, selectUser+` WHERE is_premium AND premium_expires_at < $1 ORDER BY premium_expires_at LIMIT $2`, t, limit)
}

func (r *userRepo) ListWithPendingOrders(ctx context.Context, afterID string, limit int) (_ []*model.User, err error) {
	defer metrics.ObserveStoreOp(storeName, "list_pending", time.Now(), &err)
	return r.list(ctx, selectUser+` WHERE has_pending_orders AND id > $1 ORDER BY id LIMIT $2`, afterID, limit)
}

func (r *userRepo) list(ctx context.Context, q string, args ...interface{}) ([]*model.User, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// scanUser decodes the document; the id and version columns are authoritative.
func scanUser(row pgx.Row) (*model.User, error) {
	var (
		id      string
		doc     []byte
		version int64
	)
	if err := row.Scan(&id, &doc, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	var u model.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("%w: user %s: %v", domain.ErrReadDatabaseRow, id, err)
	}
	u.ID, u.Version = id, version
	return &u, nil
}

func premiumExpiry(u *model.User) *time.Time {
	if u.PremiumPlan == nil || u.PremiumPlan.ExpiryDate.IsZero() {
		return nil
	}
	t := u.PremiumPlan.ExpiryDate
	return &t
}
