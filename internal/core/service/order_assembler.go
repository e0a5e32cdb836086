package service

import (
	"sort"

	"github.com/rl1809/order-placement/internal/core/domain"
)

// AssembleOrder builds the frozen line items and the per-product inventory
// updates for validated input. Line items keep request order. Updates hold one
// entry per product, sorted by product ID so stores lock rows in a stable order.
func AssembleOrder(customerID string, validated []domain.ValidatedItem) (domain.OrderDraft, []domain.InventoryUpdate) {
	draft := domain.OrderDraft{
		CustomerID: customerID,
		Items:      make([]domain.OrderLineItem, 0, len(validated)),
	}

	index := make(map[string]int, len(validated))
	updates := make([]domain.InventoryUpdate, 0, len(validated))

	for _, item := range validated {
		draft.Items = append(draft.Items, domain.OrderLineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
		})

		if i, ok := index[item.ProductID]; ok {
			updates[i].Deduct += item.Quantity
			updates[i].NewQuantity = item.NewQuantity
			continue
		}
		index[item.ProductID] = len(updates)
		updates = append(updates, domain.InventoryUpdate{
			ProductID:   item.ProductID,
			Deduct:      item.Quantity,
			NewQuantity: item.NewQuantity,
		})
	}

	sort.Slice(updates, func(i, j int) bool {
		return updates[i].ProductID < updates[j].ProductID
	})

	return draft, updates
}
