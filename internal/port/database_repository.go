package port

import (
	"context"

	"github.com/rl1809/oms-inventory/internal/core/domain"
)

// AtomicDeductRequest describes a compare-and-decrement the store must perform
// as one indivisible operation, together with its movement row.
type AtomicDeductRequest struct {
	ProductID     string
	Quantity      int
	MovementType  domain.MovementType
	ReferenceType string
	ReferenceID   string
	Note          string
	ActorID       string
}

type ProductRepository interface {
	// GetProduct returns *domain.ProductNotFoundError when the product does not exist
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// UpdateProductStock overwrites on-hand without any check
	UpdateProductStock(ctx context.Context, productID string, stock int) error

	// IncrementStock adds delta to on-hand atomically and returns the balances around the write
	IncrementStock(ctx context.Context, productID string, delta int) (previous, current int, err error)

	// AtomicDeduct checks sufficiency, decrements, and records the movement in one step.
	// Returns *domain.InsufficientStockError without touching stock when on-hand is too low.
	AtomicDeduct(ctx context.Context, req AtomicDeductRequest) (previous, current int, err error)

	// ListLowStockProducts returns active products whose stock is at or below the
	// override, or their own threshold when override is nil
	ListLowStockProducts(ctx context.Context, thresholdOverride *int) ([]domain.Product, error)
}

type MovementRepository interface {
	InsertMovement(ctx context.Context, movement domain.Movement) error

	// ListMovements returns a product's movements in the order they were appended
	ListMovements(ctx context.Context, productID string) ([]domain.Movement, error)
}

type OrderNumberRepository interface {
	// MaxOrderNumberForDate returns the highest order number with the given YYMMDD prefix
	MaxOrderNumberForDate(ctx context.Context, dateString string) (string, bool, error)
}

type OrderRepository interface {
	// InsertOrder returns domain.ErrDuplicateOrderNumber when the number is taken
	InsertOrder(ctx context.Context, order domain.Order) error
}

type Store interface {
	ProductRepository
	MovementRepository
	OrderNumberRepository
	OrderRepository
	IdempotencyRepository
}
