package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-placement/internal/adapter/storage"
	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

var (
	demoCustomer = domain.Customer{ID: "customer-1", Email: "demo@example.com"}

	demoProducts = []domain.Product{
		{ID: "iphone-15", Name: "iPhone 15", Price: decimal.RequireFromString("999.00"), Quantity: 100},
		{ID: "airpods-pro", Name: "AirPods Pro", Price: decimal.RequireFromString("249.00"), Quantity: 250},
	}
)

// catalogWriter creates catalog rows. Every store driver implements it.
type catalogWriter interface {
	CreateCustomer(ctx context.Context, customer domain.Customer) error
	CreateProduct(ctx context.Context, product domain.Product) error
}

func demoProductIDs() []string {
	ids := make([]string, len(demoProducts))
	for i, p := range demoProducts {
		ids[i] = p.ID
	}
	return ids
}

// seedDemoData creates the demo customer and products that are missing from
// the store. Existing rows, and the stock they hold, are left alone.
func seedDemoData(ctx context.Context, st *store) error {
	customer, err := st.customers.FindByID(ctx, demoCustomer.ID)
	if err != nil {
		return fmt.Errorf("find demo customer: %w", err)
	}
	if customer == nil {
		if err := st.catalog.CreateCustomer(ctx, demoCustomer); err != nil {
			return fmt.Errorf("create demo customer: %w", err)
		}
	}

	existing, err := st.products.FindAllByID(ctx, demoProductIDs())
	if err != nil {
		return fmt.Errorf("find demo products: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.ID] = true
	}

	for _, p := range demoProducts {
		if have[p.ID] {
			continue
		}
		if err := st.catalog.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("create demo product %s: %w", p.ID, err)
		}
	}
	return nil
}

// loadInventoryGate copies catalog products from the store into the Redis
// gate. Products Redis already holds keep their stock.
func loadInventoryGate(ctx context.Context, inventory *storage.RedisInventory, products port.ProductRepository, ids []string) (int, error) {
	catalog, err := products.FindAllByID(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("read catalog: %w", err)
	}

	var loaded int
	for _, p := range catalog {
		ok, err := inventory.LoadProduct(ctx, p)
		if err != nil {
			return loaded, err
		}
		if ok {
			loaded++
		}
	}
	return loaded, nil
}
