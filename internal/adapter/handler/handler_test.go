package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/adapter/storage"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/core/service"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// memoryKeys is an in-process idempotency store.
type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryKeys) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryKeys) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func newTestOrderService() (*service.OrderService, *storage.MemoryAdapter) {
	store := storage.NewMemoryAdapter()
	store.AddCustomer(domain.Customer{ID: "customer-1", Email: "customer-1@example.com"})
	store.AddProduct(domain.Product{
		ID:       "widget",
		Name:     "Widget",
		Price:    decimal.RequireFromString("5.00"),
		Quantity: 10,
	})

	svc := service.NewOrderService(store, store, store, store,
		service.WithIdempotency(&memoryKeys{keys: make(map[string]bool)}),
	)
	return svc, store
}
