package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOrder        = errors.New("invalid order")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrTransactionConflict = errors.New("transaction conflict")
	ErrTransactionTimeout  = errors.New("transaction timeout")
	ErrOrderNotFound       = errors.New("order not found")
	ErrDuplicateRequest    = errors.New("duplicate request")
)

type InvalidOrderError struct {
	Reason string
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("invalid order: %s", e.Reason)
}

func (e *InvalidOrderError) Unwrap() error { return ErrInvalidOrder }

type CustomerNotFoundError struct {
	CustomerID string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("customer %s not found", e.CustomerID)
}

func (e *CustomerNotFoundError) Unwrap() error { return ErrCustomerNotFound }

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// InsufficientStockError reports the first line item that could not be
// satisfied. Available is the stock left for that product after earlier lines
// of the same request were accounted for.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }
