package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/core/domain"
)

// MemoryAdapter keeps customers, products and orders in process memory.
// Every product has its own lock; multi-product writes take those locks in
// ascending product ID order.
type MemoryAdapter struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	products  map[string]*productRecord
	orders    map[string]domain.Order
}

type productRecord struct {
	mu      sync.Mutex
	product domain.Product
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]*productRecord),
		orders:    make(map[string]domain.Order),
	}
}

func (m *MemoryAdapter) AddCustomer(customer domain.Customer) {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customer.ID] = customer
}

func (m *MemoryAdapter) AddProduct(product domain.Product) {
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = &productRecord{product: product}
}

// SetPrice changes the catalog price of a product. Orders already placed keep
// the price they were placed at.
func (m *MemoryAdapter) SetPrice(productID string, price decimal.Decimal) error {
	rec := m.record(productID)
	if rec == nil {
		return &domain.ProductNotFoundError{ProductID: productID}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.product.Price = price
	rec.product.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryAdapter) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.AddCustomer(customer)
	return nil
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, product domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.AddProduct(product)
	return nil
}

func (m *MemoryAdapter) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.SetPrice(productID, price)
}

func (m *MemoryAdapter) Product(productID string) (domain.Product, bool) {
	rec := m.record(productID)
	if rec == nil {
		return domain.Product{}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.product, true
}

func (m *MemoryAdapter) OrderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders)
}

func (m *MemoryAdapter) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	customer, ok := m.customers[customerID]
	if !ok {
		return nil, nil
	}
	return &customer, nil
}

func (m *MemoryAdapter) FindAllByID(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(productIDs))
	for _, id := range productIDs {
		if p, ok := m.Product(id); ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *MemoryAdapter) ApplyQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	records, unlock, err := m.lockProducts(updates)
	if err != nil {
		return err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return decrement(records, updates)
}

func (m *MemoryAdapter) RevertQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error {
	records, unlock, err := m.lockProducts(updates)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	for _, u := range updates {
		rec := records[u.ProductID]
		rec.product.Quantity += u.Deduct
		rec.product.UpdatedAt = now
	}
	return nil
}

func (m *MemoryAdapter) CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.insertOrder(draft), nil
}

func (m *MemoryAdapter) FindOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return domain.NewOrder(order.ID, domain.OrderDraft{CustomerID: order.CustomerID, Items: order.Items}, order.CreatedAt), nil
}

// CommitOrder holds the product locks across the decrement and the order
// insert, so no other writer observes one without the other.
func (m *MemoryAdapter) CommitOrder(ctx context.Context, draft domain.OrderDraft, updates []domain.InventoryUpdate) (*domain.Order, error) {
	records, unlock, err := m.lockProducts(updates)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := decrement(records, updates); err != nil {
		return nil, err
	}

	return m.insertOrder(draft), nil
}

func (m *MemoryAdapter) insertOrder(draft domain.OrderDraft) *domain.Order {
	order := domain.NewOrder(uuid.NewString(), draft, time.Now().UTC())

	m.mu.Lock()
	m.orders[order.ID] = *order
	m.mu.Unlock()

	return order
}

func (m *MemoryAdapter) record(productID string) *productRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[productID]
}

// lockProducts locks the records touched by updates in ascending ID order.
func (m *MemoryAdapter) lockProducts(updates []domain.InventoryUpdate) (map[string]*productRecord, func(), error) {
	ids := make([]string, 0, len(updates))
	for _, u := range updates {
		ids = append(ids, u.ProductID)
	}
	sort.Strings(ids)

	records := make(map[string]*productRecord, len(ids))
	m.mu.RLock()
	for _, id := range ids {
		rec, ok := m.products[id]
		if !ok {
			m.mu.RUnlock()
			return nil, nil, &domain.ProductNotFoundError{ProductID: id}
		}
		records[id] = rec
	}
	m.mu.RUnlock()

	locked := make([]*productRecord, 0, len(ids))
	for _, id := range ids {
		rec := records[id]
		if len(locked) > 0 && locked[len(locked)-1] == rec {
			continue
		}
		rec.mu.Lock()
		locked = append(locked, rec)
	}

	unlock := func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}
	return records, unlock, nil
}

// decrement checks every update before applying any. Callers hold the locks.
func decrement(records map[string]*productRecord, updates []domain.InventoryUpdate) error {
	needed := make(map[string]int, len(updates))
	for _, u := range updates {
		needed[u.ProductID] += u.Deduct
	}

	for id, qty := range needed {
		if records[id].product.Quantity < qty {
			return fmt.Errorf("%w: product %s has %d, need %d",
				domain.ErrTransactionConflict, id, records[id].product.Quantity, qty)
		}
	}

	now := time.Now().UTC()
	for id, qty := range needed {
		rec := records[id]
		rec.product.Quantity -= qty
		rec.product.UpdatedAt = now
	}
	return nil
}
