package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"counselling-payments/internal/domain/model"
	"counselling-payments/internal/domain/ports/repository"
)

var _ repository.OrderCache = (*OrderCache)(nil)

// OrderCache keeps a user's order list for the read endpoints. The reconcile
// use case invalidates it after every committed write.
type OrderCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewOrderCache(client RedisClient, ttl time.Duration) *OrderCache {
	return &OrderCache{
		client: client,
		ttl:    ttl,
	}
}

func ordersKey(userID string) string { return "user_orders:" + userID }

func (c *OrderCache) GetOrders(ctx context.Context, userID string) ([]model.Order, bool, error) {
	data, err := c.client.Get(ctx, ordersKey(userID))
	if errors.Is(err, Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var orders []model.Order
	if err := json.Unmarshal([]byte(data), &orders); err != nil {
		// a corrupt entry is a miss; the next write replaces it
		_ = c.client.Del(ctx, ordersKey(userID))
		return nil, false, nil
	}
	return orders, true, nil
}

func (c *OrderCache) SetOrders(ctx context.Context, userID string, orders []model.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ordersKey(userID), data, c.ttl)
}

func (c *OrderCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, ordersKey(userID))
}
