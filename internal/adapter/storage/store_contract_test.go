package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

// orderStore is what every persistent backend offers: the placement ports
// plus the catalog writes tests seed through.
type orderStore interface {
	port.CustomerRepository
	port.ProductRepository
	port.InventoryStore
	port.OrderRepository
	port.OrderCommitter

	CreateCustomer(ctx context.Context, customer domain.Customer) error
	CreateProduct(ctx context.Context, product domain.Product) error
	UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error
}

// testIDs keeps rows from different runs apart on shared databases.
type testIDs struct {
	suffix string
}

func newTestIDs() testIDs {
	return testIDs{suffix: uuid.NewString()[:8]}
}

func (ids testIDs) id(name string) string {
	return name + "-" + ids.suffix
}

func seedCustomer(t *testing.T, store orderStore, id string) {
	t.Helper()
	require.NoError(t, store.CreateCustomer(context.Background(), domain.Customer{
		ID:    id,
		Email: id + "@example.com",
	}))
}

func seedProduct(t *testing.T, store orderStore, id, price string, quantity int) {
	t.Helper()
	require.NoError(t, store.CreateProduct(context.Background(), domain.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	}))
}

func quantityOf(t *testing.T, store orderStore, id string) int {
	t.Helper()
	products, err := store.FindAllByID(context.Background(), []string{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	return products[0].Quantity
}

func lineItems(customerID string, lines ...domain.OrderLineItem) domain.OrderDraft {
	return domain.OrderDraft{CustomerID: customerID, Items: lines}
}

func line(productID string, qty int, price string) domain.OrderLineItem {
	return domain.OrderLineItem{ProductID: productID, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func deduct(productID string, qty int) domain.InventoryUpdate {
	return domain.InventoryUpdate{ProductID: productID, Deduct: qty}
}

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, store orderStore) {
	ctx := context.Background()

	t.Run("FindCustomer", func(t *testing.T) {
		ids := newTestIDs()
		seedCustomer(t, store, ids.id("alice"))

		c, err := store.FindByID(ctx, ids.id("alice"))
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.Equal(t, ids.id("alice")+"@example.com", c.Email)

		missing, err := store.FindByID(ctx, ids.id("nobody"))
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("FindAllByIDSkipsMissing", func(t *testing.T) {
		ids := newTestIDs()
		seedProduct(t, store, ids.id("widget"), "5.00", 10)

		products, err := store.FindAllByID(ctx, []string{ids.id("widget"), ids.id("missing")})
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, ids.id("widget"), products[0].ID)
		assert.True(t, products[0].Price.Equal(decimal.RequireFromString("5.00")))
		assert.Equal(t, 10, products[0].Quantity)
	})

	t.Run("CommitOrder", func(t *testing.T) {
		ids := newTestIDs()
		customer, widget, bolt := ids.id("cust"), ids.id("widget"), ids.id("bolt")
		seedCustomer(t, store, customer)
		seedProduct(t, store, widget, "5.00", 10)
		seedProduct(t, store, bolt, "0.25", 100)

		draft := lineItems(customer, line(widget, 2, "5.00"), line(bolt, 10, "0.25"), line(widget, 1, "5.00"))
		order, err := store.CommitOrder(ctx, draft, []domain.InventoryUpdate{deduct(bolt, 10), deduct(widget, 3)})
		require.NoError(t, err)
		require.NotEmpty(t, order.ID)
		assert.Equal(t, domain.OrderStatusPlaced, order.Status)

		assert.Equal(t, 7, quantityOf(t, store, widget))
		assert.Equal(t, 90, quantityOf(t, store, bolt))

		stored, err := store.FindOrderByID(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, customer, stored.CustomerID)
		require.Len(t, stored.Items, 3)
		assert.Equal(t, widget, stored.Items[0].ProductID)
		assert.Equal(t, bolt, stored.Items[1].ProductID)
		assert.Equal(t, 1, stored.Items[2].Quantity)
		assert.True(t, stored.Total().Equal(decimal.RequireFromString("17.50")), "total %s", stored.Total())
	})

	t.Run("CommitOrderIsAllOrNothing", func(t *testing.T) {
		ids := newTestIDs()
		customer, widget, bolt := ids.id("cust"), ids.id("widget"), ids.id("bolt")
		seedCustomer(t, store, customer)
		seedProduct(t, store, widget, "5.00", 10)
		seedProduct(t, store, bolt, "0.25", 1)

		draft := lineItems(customer, line(widget, 2, "5.00"), line(bolt, 2, "0.25"))
		_, err := store.CommitOrder(ctx, draft, []domain.InventoryUpdate{deduct(bolt, 2), deduct(widget, 2)})
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)

		assert.Equal(t, 10, quantityOf(t, store, widget))
		assert.Equal(t, 1, quantityOf(t, store, bolt))
	})

	t.Run("PriceFrozenAfterCommit", func(t *testing.T) {
		ids := newTestIDs()
		customer, widget := ids.id("cust"), ids.id("widget")
		seedCustomer(t, store, customer)
		seedProduct(t, store, widget, "5.00", 10)

		order, err := store.CommitOrder(ctx, lineItems(customer, line(widget, 1, "5.00")),
			[]domain.InventoryUpdate{deduct(widget, 1)})
		require.NoError(t, err)

		require.NoError(t, store.UpdatePrice(ctx, widget, decimal.RequireFromString("9.99")))

		stored, err := store.FindOrderByID(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("5.00")))
	})

	t.Run("UpdatePriceUnknownProduct", func(t *testing.T) {
		err := store.UpdatePrice(ctx, newTestIDs().id("missing"), decimal.NewFromInt(1))
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("FindOrderMissing", func(t *testing.T) {
		order, err := store.FindOrderByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, order)
	})

	t.Run("ApplyAndRevertDeltas", func(t *testing.T) {
		ids := newTestIDs()
		widget := ids.id("widget")
		seedProduct(t, store, widget, "5.00", 5)

		updates := []domain.InventoryUpdate{deduct(widget, 4)}
		require.NoError(t, store.ApplyQuantityDeltas(ctx, updates))
		assert.Equal(t, 1, quantityOf(t, store, widget))

		err := store.ApplyQuantityDeltas(ctx, updates)
		assert.ErrorIs(t, err, domain.ErrTransactionConflict)
		assert.Equal(t, 1, quantityOf(t, store, widget))

		require.NoError(t, store.RevertQuantityDeltas(ctx, updates))
		assert.Equal(t, 5, quantityOf(t, store, widget))
	})

	t.Run("ConcurrentCommitsNeverOversell", func(t *testing.T) {
		ids := newTestIDs()
		customer, widget := ids.id("cust"), ids.id("widget")
		seedCustomer(t, store, customer)
		seedProduct(t, store, widget, "1.00", 10)

		var successCount atomic.Int32
		var wg sync.WaitGroup

		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.CommitOrder(ctx, lineItems(customer, line(widget, 1, "1.00")),
					[]domain.InventoryUpdate{deduct(widget, 1)})
				switch {
				case err == nil:
					successCount.Add(1)
				case errors.Is(err, domain.ErrTransactionConflict):
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(10), successCount.Load())
		assert.Equal(t, 0, quantityOf(t, store, widget))
	})
}
