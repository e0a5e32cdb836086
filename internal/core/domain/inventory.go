package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Customer struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// ValidatedItem is a requested line item checked against current stock.
// NewQuantity is the product quantity after this line and every earlier line
// for the same product in the same request have been deducted.
type ValidatedItem struct {
	ProductID   string
	Quantity    int
	NewQuantity int
	UnitPrice   decimal.Decimal
}

// InventoryUpdate is the net change for one product in one order.
type InventoryUpdate struct {
	ProductID   string
	Deduct      int
	NewQuantity int
}
