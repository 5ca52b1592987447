package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"counselling-payments/internal/domain"
	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/metrics"
)

var _ repository.PaymentLogRepository = (*PaymentLogRepo)(nil)

type PaymentLogRepo struct {
	logs *firestore.CollectionRef
}

func NewPaymentLogRepo(client *firestore.Client, collection string) *PaymentLogRepo {
	return &PaymentLogRepo{logs: client.Collection(collection)}
}

func (r *PaymentLogRepo) Append(ctx context.Context, e *model.PaymentLogEntry) (err error) {
	defer metrics.ObserveStoreOp(storeName, "log_append", time.Now(), &err)
	if e == nil || e.ID == "" {
		return domain.ErrInvalidArgument
	}
	_, err = r.logs.Doc(e.ID).Create(ctx, e)
	return translate(err)
}
