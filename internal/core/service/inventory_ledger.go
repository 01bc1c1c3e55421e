package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

// DeductMode selects how ValidateAndDeductStock talks to the store.
type DeductMode int

const (
	// DeductAtomic hands the check-and-decrement to the store as one
	// indivisible operation. It is the zero value and the only mode that is
	// safe for concurrent checkouts.
	DeductAtomic DeductMode = iota

	// DeductReadWrite reads on-hand, checks it, and writes the new value in
	// separate calls. Two concurrent callers can both pass the check and
	// oversell the product.
	DeductReadWrite
)

func (m DeductMode) String() string {
	if m == DeductReadWrite {
		return "read_write"
	}
	return "atomic"
}

type DeductRequest struct {
	ProductID   string
	Quantity    int
	ReferenceID string
	ActorID     string
	Mode        DeductMode
}

type DeductResult struct {
	PreviousStock int
	NewStock      int
	Deducted      int
}

type RestoreResult struct {
	PreviousStock int
	NewStock      int
	Restored      int
}

type AdjustResult struct {
	PreviousStock int
	NewStock      int
	Adjustment    int
}

type InboundResult struct {
	PreviousStock int
	NewStock      int
	AddedQuantity int
	UnitCost      decimal.Decimal
}

// TrailReport is the result of replaying a product's movement ledger.
type TrailReport struct {
	ProductID       string
	Movements       int
	OnHand          int
	ReplayedBalance int
	Consistent      bool
	Issues          []string
}

// InventoryLedger owns stock mutations and the movement history that records
// them. Stock writes are authoritative; movement appends are best effort.
type InventoryLedger struct {
	products  port.ProductRepository
	movements port.MovementRepository
	opts      options
}

func NewInventoryLedger(products port.ProductRepository, movements port.MovementRepository, opts ...Option) *InventoryLedger {
	return &InventoryLedger{
		products:  products,
		movements: movements,
		opts:      newOptions(opts),
	}
}

func (l *InventoryLedger) CheckStock(ctx context.Context, productID string, quantity int) (bool, error) {
	product, err := l.products.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if quantity <= 0 {
		return true, nil
	}
	return product.Stock >= quantity, nil
}

func (l *InventoryLedger) ValidateAndDeductStock(ctx context.Context, req DeductRequest) (res DeductResult, err error) {
	defer func() { l.opts.metrics.ObserveMutation("deduct_"+req.Mode.String(), err) }()

	if req.Quantity < 0 {
		return DeductResult{}, &domain.InvalidQuantityError{Value: req.Quantity, Reason: "deduction must not be negative"}
	}
	if req.Quantity == 0 {
		product, err := l.products.GetProduct(ctx, req.ProductID)
		if err != nil {
			return DeductResult{}, err
		}
		return DeductResult{PreviousStock: product.Stock, NewStock: product.Stock}, nil
	}

	if req.Mode == DeductAtomic {
		previous, current, err := l.products.AtomicDeduct(ctx, port.AtomicDeductRequest{
			ProductID:     req.ProductID,
			Quantity:      req.Quantity,
			MovementType:  domain.MovementSale,
			ReferenceType: domain.ReferenceOrder,
			ReferenceID:   req.ReferenceID,
			ActorID:       req.ActorID,
		})
		if err != nil {
			return DeductResult{}, err
		}
		return DeductResult{PreviousStock: previous, NewStock: current, Deducted: req.Quantity}, nil
	}

	product, err := l.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		return DeductResult{}, err
	}
	if product.Stock < req.Quantity {
		return DeductResult{}, &domain.InsufficientStockError{
			ProductID: req.ProductID,
			Requested: req.Quantity,
			Available: product.Stock,
		}
	}

	newStock := product.Stock - req.Quantity
	if err := l.products.UpdateProductStock(ctx, req.ProductID, newStock); err != nil {
		return DeductResult{}, fmt.Errorf("deduct stock: %w", err)
	}

	l.appendMovement(ctx, domain.NewMovement(req.ProductID, domain.MovementSale, product.Stock, newStock, req.ActorID).
		WithReference(domain.ReferenceOrder, req.ReferenceID))

	return DeductResult{PreviousStock: product.Stock, NewStock: newStock, Deducted: req.Quantity}, nil
}

func (l *InventoryLedger) RestoreStock(ctx context.Context, productID string, quantity int, referenceID, actorID string) (res RestoreResult, err error) {
	defer func() { l.opts.metrics.ObserveMutation("restore", err) }()

	if quantity < 0 {
		return RestoreResult{}, &domain.InvalidQuantityError{Value: quantity, Reason: "restore must not be negative"}
	}
	if quantity == 0 {
		product, err := l.products.GetProduct(ctx, productID)
		if err != nil {
			return RestoreResult{}, err
		}
		return RestoreResult{PreviousStock: product.Stock, NewStock: product.Stock}, nil
	}

	previous, current, err := l.products.IncrementStock(ctx, productID, quantity)
	if err != nil {
		return RestoreResult{}, err
	}

	l.appendMovement(ctx, domain.NewMovement(productID, domain.MovementRefund, previous, current, actorID).
		WithReference(domain.ReferenceRefund, referenceID))

	return RestoreResult{PreviousStock: previous, NewStock: current, Restored: quantity}, nil
}

func (l *InventoryLedger) AdjustStock(ctx context.Context, productID string, newQuantity int, reason, actorID string) (res AdjustResult, err error) {
	defer func() { l.opts.metrics.ObserveMutation("adjust", err) }()

	if newQuantity < 0 {
		return AdjustResult{}, &domain.InvalidQuantityError{Value: newQuantity, Reason: "stock must not be negative"}
	}

	product, err := l.products.GetProduct(ctx, productID)
	if err != nil {
		return AdjustResult{}, err
	}
	if err := l.products.UpdateProductStock(ctx, productID, newQuantity); err != nil {
		return AdjustResult{}, fmt.Errorf("adjust stock: %w", err)
	}

	l.appendMovement(ctx, domain.NewMovement(productID, domain.MovementAdjustment, product.Stock, newQuantity, actorID).
		WithNote(reason))

	return AdjustResult{
		PreviousStock: product.Stock,
		NewStock:      newQuantity,
		Adjustment:    newQuantity - product.Stock,
	}, nil
}

func (l *InventoryLedger) RecordInbound(ctx context.Context, productID string, quantity int, unitCost decimal.Decimal, note, actorID string) (res InboundResult, err error) {
	defer func() { l.opts.metrics.ObserveMutation("inbound", err) }()

	if quantity <= 0 {
		return InboundResult{}, &domain.InvalidQuantityError{Value: quantity, Reason: "inbound quantity must be positive"}
	}
	if unitCost.IsNegative() {
		return InboundResult{}, fmt.Errorf("%w: %s", domain.ErrInvalidUnitCost, unitCost)
	}

	previous, current, err := l.products.IncrementStock(ctx, productID, quantity)
	if err != nil {
		return InboundResult{}, err
	}

	l.appendMovement(ctx, domain.NewMovement(productID, domain.MovementInbound, previous, current, actorID).
		WithNote(note).
		WithUnitCost(unitCost))

	return InboundResult{
		PreviousStock: previous,
		NewStock:      current,
		AddedQuantity: quantity,
		UnitCost:      unitCost,
	}, nil
}

// RecordDisposal writes off damaged or expired units through the same
// indivisible path as checkout deductions.
func (l *InventoryLedger) RecordDisposal(ctx context.Context, productID string, quantity int, reason, actorID string) (res DeductResult, err error) {
	defer func() { l.opts.metrics.ObserveMutation("disposal", err) }()

	if quantity <= 0 {
		return DeductResult{}, &domain.InvalidQuantityError{Value: quantity, Reason: "disposal quantity must be positive"}
	}

	previous, current, err := l.products.AtomicDeduct(ctx, port.AtomicDeductRequest{
		ProductID:    productID,
		Quantity:     quantity,
		MovementType: domain.MovementDisposal,
		Note:         reason,
		ActorID:      actorID,
	})
	if err != nil {
		return DeductResult{}, err
	}
	return DeductResult{PreviousStock: previous, NewStock: current, Deducted: quantity}, nil
}

// GetLowStockProducts lists active products at or below the override, or
// their own threshold when override is nil, lowest stock first.
func (l *InventoryLedger) GetLowStockProducts(ctx context.Context, thresholdOverride *int) ([]domain.LowStockProduct, error) {
	products, err := l.products.ListLowStockProducts(ctx, thresholdOverride)
	if err != nil {
		return nil, err
	}

	result := make([]domain.LowStockProduct, 0, len(products))
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		threshold := p.LowStockThreshold
		if thresholdOverride != nil {
			threshold = *thresholdOverride
		}
		if p.Stock > threshold {
			continue
		}
		result = append(result, domain.LowStockProduct{
			ID:                p.ID,
			Name:              p.Name,
			SKU:               p.SKU,
			Stock:             p.Stock,
			LowStockThreshold: threshold,
			StockShortage:     threshold - p.Stock,
		})
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Stock < result[j].Stock })
	return result, nil
}

// GetMovementHistory returns movements in the order the store applied them.
// CreatedAt is stamped before the write reaches the store, so under
// contention it is not a reliable ordering key.
func (l *InventoryLedger) GetMovementHistory(ctx context.Context, productID string) ([]domain.Movement, error) {
	return l.movements.ListMovements(ctx, productID)
}

// VerifyMovementTrail replays the ledger from its first row and compares the
// result with on-hand. Gaps are reported, not returned as errors, since a
// lost append never rolls back the stock write it describes.
func (l *InventoryLedger) VerifyMovementTrail(ctx context.Context, productID string) (TrailReport, error) {
	product, err := l.products.GetProduct(ctx, productID)
	if err != nil {
		return TrailReport{}, err
	}
	movements, err := l.GetMovementHistory(ctx, productID)
	if err != nil {
		return TrailReport{}, err
	}

	report := TrailReport{
		ProductID:       productID,
		Movements:       len(movements),
		OnHand:          product.Stock,
		ReplayedBalance: product.Stock,
	}
	if len(movements) > 0 {
		balance := movements[0].BalanceBefore
		for i, mv := range movements {
			if !mv.Balanced() {
				report.Issues = append(report.Issues, fmt.Sprintf(
					"movement %s: %d %+d != %d", mv.ID, mv.BalanceBefore, mv.Quantity, mv.BalanceAfter))
			}
			if i > 0 && mv.BalanceBefore != balance {
				report.Issues = append(report.Issues, fmt.Sprintf(
					"movement %s: starts at %d, previous row ended at %d", mv.ID, mv.BalanceBefore, balance))
			}
			balance = mv.BalanceBefore + mv.Quantity
		}
		report.ReplayedBalance = balance
		if balance != product.Stock {
			report.Issues = append(report.Issues, fmt.Sprintf(
				"replayed balance %d differs from on-hand %d", balance, product.Stock))
		}
	}
	report.Consistent = len(report.Issues) == 0
	return report, nil
}

func (l *InventoryLedger) appendMovement(ctx context.Context, movement domain.Movement) {
	if err := l.movements.InsertMovement(ctx, movement); err != nil {
		l.opts.logger.WithFields(logrus.Fields{
			"productID":     movement.ProductID,
			"movementType":  movement.Type,
			"quantity":      movement.Quantity,
			"balanceBefore": movement.BalanceBefore,
			"balanceAfter":  movement.BalanceAfter,
			"referenceID":   movement.ReferenceID,
		}).WithError(err).Error("MOVEMENT:APPEND_FAILED")
		l.opts.metrics.MovementAppendFailed(movement.Type)
	}
}
