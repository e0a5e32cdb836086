package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/order-placement/internal/core/domain"
)

const (
	idempotencyKeyTTL = 24 * time.Hour
	orderStreamKey    = "orders:placed"
	orderStreamMaxLen = 100000
)

// RedisAdapter holds idempotency keys and publishes placed orders to a stream.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

type orderEventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// PublishOrderPlaced appends the order to the orders:placed stream.
func (r *RedisAdapter) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	items := make([]orderEventItem, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderEventItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price.StringFixed(2),
		}
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}

	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: orderStreamKey,
		MaxLen: orderStreamMaxLen,
		Approx: true,
		Values: map[string]any{
			"order_id":    order.ID,
			"customer_id": order.CustomerID,
			"total":       order.Total().StringFixed(2),
			"items":       string(payload),
			"created_at":  order.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
}
