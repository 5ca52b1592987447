package postgres

import (
	"context"
	"time"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/metrics"
)

var _ repository.PaymentLogRepository = (*paymentLogRepo)(nil)

type paymentLogRepo struct {
	db querier
}

func NewPaymentLogRepo(db querier) *paymentLogRepo {
	return &paymentLogRepo{db: db}
}

func (r *paymentLogRepo) Append(ctx context.Context, e *model.PaymentLogEntry) (err error) {
	defer metrics.ObserveStoreOp(storeName, "log_append", time.Now(), &err)
	if e == nil || e.ID == "" {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO payment_logs (id, event_type, event_id, outcome, user_id, order_id, payment_id, error, raw_data, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = r.db.Exec(ctx, q, e.ID, e.EventType, e.EventID, string(e.Outcome), e.UserID, e.OrderID, e.PaymentID, e.Error, e.RawData, e.Timestamp)
	return err
}
