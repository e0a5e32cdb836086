package port

import (
	"context"

	"github.com/rl1809/order-placement/internal/core/domain"
)

type CustomerRepository interface {
	// FindByID returns nil, nil when the customer does not exist
	FindByID(ctx context.Context, customerID string) (*domain.Customer, error)
}

type ProductRepository interface {
	// FindAllByID fetches every listed product in one lookup; unknown IDs are absent from the result
	FindAllByID(ctx context.Context, productIDs []string) ([]domain.Product, error)
}

type InventoryStore interface {
	// ApplyQuantityDeltas decrements every product by its Deduct, all or nothing.
	// Returns domain.ErrTransactionConflict if any product would go negative.
	ApplyQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error

	// RevertQuantityDeltas adds the deductions back (compensation)
	RevertQuantityDeltas(ctx context.Context, updates []domain.InventoryUpdate) error
}

type OrderRepository interface {
	// CreateOrder assigns an ID and persists the order with its line items
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (*domain.Order, error)

	// FindOrderByID returns nil, nil when the order does not exist
	FindOrderByID(ctx context.Context, orderID string) (*domain.Order, error)
}

type OrderCommitter interface {
	// CommitOrder applies the inventory updates and creates the order in one atomic unit
	CommitOrder(ctx context.Context, draft domain.OrderDraft, updates []domain.InventoryUpdate) (*domain.Order, error)
}
