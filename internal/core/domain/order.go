package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPlaced OrderStatus = "placed"
)

// MaxLineQuantity bounds a single line so it fits the int32 wire field.
const MaxLineQuantity = math.MaxInt32

// LineItemRequest is one (product, quantity) pair as requested by a caller.
type LineItemRequest struct {
	ProductID string
	Quantity  int
}

// OrderLineItem is a frozen order line. Price is the product price observed
// when the order was placed and is never re-read.
type OrderLineItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Subtotal returns price * quantity.
func (li OrderLineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// OrderDraft is an assembled order that has not been persisted yet.
type OrderDraft struct {
	CustomerID string
	Items      []OrderLineItem
}

type Order struct {
	ID         string
	CustomerID string
	Items      []OrderLineItem
	Status     OrderStatus
	CreatedAt  time.Time
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// NewOrder materializes a persisted order from a draft. Items are copied so
// the order does not share backing storage with the draft.
func NewOrder(id string, draft OrderDraft, createdAt time.Time) *Order {
	items := make([]OrderLineItem, len(draft.Items))
	copy(items, draft.Items)

	return &Order{
		ID:         id,
		CustomerID: draft.CustomerID,
		Items:      items,
		Status:     OrderStatusPlaced,
		CreatedAt:  createdAt,
	}
}
