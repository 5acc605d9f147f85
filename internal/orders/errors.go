package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyOrder    = errors.New("order has no products")
	ErrOrderNotFound = errors.New("order not found")
)

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

// InsufficientStockError reports a request that exceeds a product's real
// stock (committed minus reserved).
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("not enough stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ExcessReleaseError reports an attempt to release more than is reserved.
type ExcessReleaseError struct {
	ProductID string
	Requested int
	Reserved  int
}

func (e *ExcessReleaseError) Error() string {
	return fmt.Sprintf("cannot release %d of product %s: only %d reserved",
		e.Requested, e.ProductID, e.Reserved)
}

type InvalidQuantityError struct {
	ProductID string
	Qty       int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Qty, e.ProductID)
}
