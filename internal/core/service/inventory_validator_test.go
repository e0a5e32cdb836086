package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-placement/internal/core/domain"
)

func TestValidate_RunningBalance(t *testing.T) {
	store := newMockStore()
	store.addProduct("widget", "5.00", 10)
	store.addProduct("gadget", "12.25", 2)
	v := NewInventoryValidator(store)

	validated, err := v.Validate(context.Background(), []domain.LineItemRequest{
		{ProductID: "widget", Quantity: 3},
		{ProductID: "gadget", Quantity: 2},
		{ProductID: "widget", Quantity: 4},
	})
	require.NoError(t, err)
	require.Len(t, validated, 3)

	assert.Equal(t, domain.ValidatedItem{
		ProductID: "widget", Quantity: 3, NewQuantity: 7, UnitPrice: decimal.RequireFromString("5.00"),
	}, validated[0])
	assert.Equal(t, 0, validated[1].NewQuantity)
	assert.True(t, validated[1].UnitPrice.Equal(decimal.RequireFromString("12.25")))
	assert.Equal(t, 3, validated[2].NewQuantity)
}

func TestValidate_ExactStock(t *testing.T) {
	store := newMockStore()
	store.addProduct("widget", "5.00", 5)
	v := NewInventoryValidator(store)

	validated, err := v.Validate(context.Background(), []domain.LineItemRequest{
		{ProductID: "widget", Quantity: 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, validated[0].NewQuantity)
}

func TestValidate_FirstFailingLineWins(t *testing.T) {
	store := newMockStore()
	store.addProduct("widget", "5.00", 1)
	v := NewInventoryValidator(store)

	_, err := v.Validate(context.Background(), []domain.LineItemRequest{
		{ProductID: "widget", Quantity: 2},
		{ProductID: "missing", Quantity: 1},
	})

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "widget", stockErr.ProductID)
}

func TestValidate_ProductNotFound(t *testing.T) {
	v := NewInventoryValidator(newMockStore())

	_, err := v.Validate(context.Background(), []domain.LineItemRequest{
		{ProductID: "missing", Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestValidate_LookupError(t *testing.T) {
	store := newMockStore()
	store.findProductsErr = errStoreDown
	v := NewInventoryValidator(store)

	_, err := v.Validate(context.Background(), []domain.LineItemRequest{
		{ProductID: "widget", Quantity: 1},
	})
	assert.ErrorIs(t, err, errStoreDown)
}

func TestDistinctProductIDs(t *testing.T) {
	ids := distinctProductIDs([]domain.LineItemRequest{
		{ProductID: "b"}, {ProductID: "a"}, {ProductID: "b"}, {ProductID: "c"},
	})
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}
