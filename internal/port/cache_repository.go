package port

import (
	"context"

	"github.com/rl1809/order-placement/internal/core/domain"
)

type IdempotencyRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes the key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order domain.Order) error
}
