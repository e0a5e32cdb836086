package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/core/domain"
)

// Mock store backing every repository port
type mockStore struct {
	mu        sync.Mutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	nextID    int

	findProductsErr error
	createOrderErr  error
	revertErr       error
	commitDelay     time.Duration
	conflicts       int

	applyCalls  int
	revertCalls int
	commitCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
	}
}

func (m *mockStore) addCustomer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[id] = domain.Customer{ID: id, Email: id + "@example.com"}
}

func (m *mockStore) addProduct(id, price string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = domain.Product{
		ID:       id,
		Name:     id,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	}
}

func (m *mockStore) setPrice(id, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Price = decimal.RequireFromString(price)
	m.products[id] = p
}

func (m *mockStore) quantity(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *mockStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockStore) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[customerID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *mockStore) FindAllByID(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findProductsErr != nil {
		return nil, m.findProductsErr
	}

	var products []domain.Product
	for _, id := range productIDs {
		if p, ok := m.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *mockStore) ApplyQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyCalls++
	return m.decrementLocked(updates)
}

func (m *mockStore) RevertQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.revertCalls++
	if m.revertErr != nil {
		return m.revertErr
	}
	for _, u := range updates {
		p := m.products[u.ProductID]
		p.Quantity += u.Deduct
		m.products[u.ProductID] = p
	}
	return nil
}

func (m *mockStore) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createOrderErr != nil {
		return nil, m.createOrderErr
	}
	return m.insertLocked(draft), nil
}

func (m *mockStore) FindOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockStore) CommitOrder(ctx context.Context, draft domain.OrderDraft, updates []domain.InventoryUpdate) (*domain.Order, error) {
	if m.commitDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("commit: %w", ctx.Err())
		case <-time.After(m.commitDelay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.commitCalls++
	if m.conflicts > 0 {
		m.conflicts--
		return nil, domain.ErrTransactionConflict
	}
	if err := m.decrementLocked(updates); err != nil {
		return nil, err
	}
	return m.insertLocked(draft), nil
}

func (m *mockStore) decrementLocked(updates []domain.InventoryUpdate) error {
	for _, u := range updates {
		p, ok := m.products[u.ProductID]
		if !ok {
			return &domain.ProductNotFoundError{ProductID: u.ProductID}
		}
		if p.Quantity < u.Deduct {
			return fmt.Errorf("%w: product %s", domain.ErrTransactionConflict, u.ProductID)
		}
	}
	for _, u := range updates {
		p := m.products[u.ProductID]
		p.Quantity -= u.Deduct
		m.products[u.ProductID] = p
	}
	return nil
}

func (m *mockStore) insertLocked(draft domain.OrderDraft) *domain.Order {
	m.nextID++
	order := domain.NewOrder(fmt.Sprintf("order-%d", m.nextID), draft, time.Now().UTC())
	m.orders[order.ID] = *order
	return order
}

// Mock IdempotencyRepository
type mockIdempotency struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
	err      error
}

func newMockIdempotency() *mockIdempotency {
	return &mockIdempotency{keys: make(map[string]bool)}
}

func (m *mockIdempotency) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotency) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

// Mock OrderEventPublisher
type mockEventPublisher struct {
	mu        sync.Mutex
	published []domain.Order
	err       error
}

func (m *mockEventPublisher) PublishOrderPlaced(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, order)
	return nil
}

func (m *mockEventPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

var errStoreDown = errors.New("store down")
