package redis

import (
	"context"
	"time"

	"counselling-payments/internal/domain/ports/repository"
	"counselling-payments/internal/infra/metrics"
)

var _ repository.DeliveryDeduper = (*DeliveryDeduper)(nil)

// claimLease bounds how long an unconfirmed claim blocks redeliveries. A
// process that dies mid-delivery leaves its claim behind; once the lease
// lapses the gateway's next retry is processed.
const claimLease = 5 * time.Minute

// DeliveryDeduper claims webhook delivery ids with SETNX under a short lease
// and extends the key to ttl once the delivery reached a terminal outcome.
// ttl bounds how late a gateway retry can still be caught.
type DeliveryDeduper struct {
	client RedisClient
	ttl    time.Duration
	lease  time.Duration
}

func NewDeliveryDeduper(client RedisClient, ttl time.Duration) *DeliveryDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &DeliveryDeduper{client: client, ttl: ttl, lease: min(claimLease, ttl)}
}

func deliveryKey(eventID string) string { return "webhook_event:" + eventID }

func (d *DeliveryDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	first, err := d.client.SetNX(ctx, deliveryKey(eventID), "processing", d.lease)
	if err != nil {
		metrics.IncDedupeCheck("error")
		return false, err
	}
	if first {
		metrics.IncDedupeCheck("new")
	} else {
		metrics.IncDedupeCheck("duplicate")
	}
	return first, nil
}

func (d *DeliveryDeduper) Confirm(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, deliveryKey(eventID), time.Now().Unix(), d.ttl)
}

func (d *DeliveryDeduper) Forget(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, deliveryKey(eventID))
}
