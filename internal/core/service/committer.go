package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/order-placement/internal/core/domain"
	"github.com/rl1809/order-placement/internal/port"
)

const (
	defaultApplyTimeout  = 5 * time.Second
	defaultRevertTimeout = 5 * time.Second
)

// CompensatingCommitter commits an order against stores that cannot write
// inventory and orders in one transaction. Inventory is decremented first;
// if the order cannot be created the decrement is reversed before the error
// is returned.
//
// The decrement runs under its own timeout, detached from the caller's
// deadline; the caller's deadline bounds CreateOrder only.
type CompensatingCommitter struct {
	inventory     port.InventoryStore
	orders        port.OrderRepository
	applyTimeout  time.Duration
	revertTimeout time.Duration
}

func NewCompensatingCommitter(inventory port.InventoryStore, orders port.OrderRepository) *CompensatingCommitter {
	return &CompensatingCommitter{
		inventory:     inventory,
		orders:        orders,
		applyTimeout:  defaultApplyTimeout,
		revertTimeout: defaultRevertTimeout,
	}
}

func (c *CompensatingCommitter) CommitOrder(ctx context.Context, draft domain.OrderDraft, updates []domain.InventoryUpdate) (*domain.Order, error) {
	applyCtx, cancelApply := context.WithTimeout(context.WithoutCancel(ctx), c.applyTimeout)
	err := c.inventory.ApplyQuantityDeltas(applyCtx, updates)
	cancelApply()
	if err != nil {
		return nil, err
	}

	order, err := c.orders.CreateOrder(ctx, draft)
	if err == nil {
		return order, nil
	}

	// The caller's context may already be done; the revert must still run.
	revertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.revertTimeout)
	defer cancel()

	if rollbackErr := c.inventory.RevertQuantityDeltas(revertCtx, updates); rollbackErr != nil {
		return nil, errors.Join(
			fmt.Errorf("create order: %w", err),
			fmt.Errorf("revert inventory: %w", rollbackErr),
		)
	}

	return nil, fmt.Errorf("create order: %w", err)
}
