package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

const customerKeyPrefix = "customer:"

var errCacheMiss = errors.New("cache miss")

// CachedCustomerRepository is a read-through Redis cache in front of a
// customer repository. Absent customers are never cached. Cache failures fall
// back to the underlying repository.
type CachedCustomerRepository struct {
	next   port.CustomerRepository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedCustomerRepository(next port.CustomerRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedCustomerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCustomerRepository{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

type cachedCustomer struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *CachedCustomerRepository) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	customer, err := c.get(ctx, customerID)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, errCacheMiss) {
		c.logger.WarnContext(ctx, "customer cache read failed", "customer_id", customerID, "error", err)
	}

	customer, err = c.next.FindByID(ctx, customerID)
	if err != nil || customer == nil {
		return customer, err
	}

	if err := c.set(ctx, customer); err != nil {
		c.logger.WarnContext(ctx, "customer cache write failed", "customer_id", customerID, "error", err)
	}
	return customer, nil
}

func (c *CachedCustomerRepository) get(ctx context.Context, customerID string) (*domain.Customer, error) {
	raw, err := c.client.Get(ctx, customerKeyPrefix+customerID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var cached cachedCustomer
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode cached customer: %w", err)
	}

	return &domain.Customer{
		ID:        cached.ID,
		Email:     cached.Email,
		CreatedAt: cached.CreatedAt,
	}, nil
}

func (c *CachedCustomerRepository) set(ctx context.Context, customer *domain.Customer) error {
	raw, err := json.Marshal(cachedCustomer{
		ID:        customer.ID,
		Email:     customer.Email,
		CreatedAt: customer.CreatedAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, customerKeyPrefix+customer.ID, raw, c.ttl).Err()
}
