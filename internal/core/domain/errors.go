package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrSequenceExhausted    = errors.New("order sequence exhausted")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrInvalidUnitCost      = errors.New("unit cost must not be negative")
	ErrInvalidSKUInput      = errors.New("sku category and model are required")
	ErrInvalidPCCC          = errors.New("invalid customs clearance code")
)

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

type InvalidQuantityError struct {
	Value  int
	Reason string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d: %s", e.Value, e.Reason)
}

func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}

type SequenceExhaustedError struct {
	DateString string
}

func (e *SequenceExhaustedError) Error() string {
	return fmt.Sprintf("order sequence exhausted for %s", e.DateString)
}

func (e *SequenceExhaustedError) Is(target error) bool {
	return target == ErrSequenceExhausted
}
