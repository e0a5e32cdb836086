package service

import (
	"context"
	"fmt"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

// InventoryValidator checks requested line items against current stock.
// It only reads.
type InventoryValidator struct {
	products port.ProductRepository
}

func NewInventoryValidator(products port.ProductRepository) *InventoryValidator {
	return &InventoryValidator{products: products}
}

// Validate fetches all referenced products in a single lookup and checks each
// line in request order. Lines for the same product draw from one running
// balance, so a request can never deduct more than the observed stock.
func (v *InventoryValidator) Validate(ctx context.Context, items []domain.LineItemRequest) ([]domain.ValidatedItem, error) {
	products, err := v.products.FindAllByID(ctx, distinctProductIDs(items))
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	remaining := make(map[string]int, len(byID))
	validated := make([]domain.ValidatedItem, 0, len(items))

	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, &domain.ProductNotFoundError{ProductID: item.ProductID}
		}

		available, seen := remaining[item.ProductID]
		if !seen {
			available = product.Quantity
		}

		if item.Quantity > available {
			return nil, &domain.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: available,
			}
		}

		remaining[item.ProductID] = available - item.Quantity
		validated = append(validated, domain.ValidatedItem{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			NewQuantity: available - item.Quantity,
			UnitPrice:   product.Price,
		})
	}

	return validated, nil
}

func distinctProductIDs(items []domain.LineItemRequest) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
