package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

type CheckoutRequest struct {
	RequestID  string
	CustomerID string
	ProductID  string
	PCCC       string
	Quantity   int
	ActorID    string
	OrderDate  time.Time
}

// CheckoutService is the order-creation workflow: it validates the customs
// code, reserves stock atomically, and persists the order under a fresh order
// number. Stock is handed back if the order cannot be stored.
type CheckoutService struct {
	idempotency port.IdempotencyRepository
	orders      port.OrderRepository
	ledger      *InventoryLedger
	sequencer   *OrderSequencer
	opts        options
}

func NewCheckoutService(
	idempotency port.IdempotencyRepository,
	orders port.OrderRepository,
	ledger *InventoryLedger,
	sequencer *OrderSequencer,
	opts ...Option,
) *CheckoutService {
	return &CheckoutService{
		idempotency: idempotency,
		orders:      orders,
		ledger:      ledger,
		sequencer:   sequencer,
		opts:        newOptions(opts),
	}
}

func (s *CheckoutService) PlaceOrder(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	if req.Quantity <= 0 {
		return nil, &domain.InvalidQuantityError{Value: req.Quantity, Reason: "order quantity must be positive"}
	}

	pccc := ValidatePCCC(req.PCCC)
	if !pccc.IsValid {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPCCC, strings.Join(pccc.Errors, "; "))
	}

	// Rejections past this point release the key so the request can be resubmitted.
	idempotencyKey := fmt.Sprintf("checkout:%s:%s", req.CustomerID, req.RequestID)
	ok, err := s.idempotency.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	now := s.opts.now()
	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: req.CustomerID,
		ProductID:  req.ProductID,
		PCCC:       pccc.Normalized,
		Quantity:   req.Quantity,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.ledger.ValidateAndDeductStock(ctx, DeductRequest{
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		ReferenceID: order.ID,
		ActorID:     req.ActorID,
		Mode:        DeductAtomic,
	}); err != nil {
		s.release(ctx, idempotencyKey)
		return nil, err
	}

	number, err := s.sequencer.GenerateOrderNumberWithRetry(ctx, req.OrderDate, func(ctx context.Context, orderNumber string) error {
		order.OrderNumber = orderNumber
		return s.orders.InsertOrder(ctx, order)
	})
	if err != nil {
		s.compensate(ctx, order, req.ActorID, err)
		s.release(ctx, idempotencyKey)
		return nil, fmt.Errorf("save order: %w", err)
	}
	order.OrderNumber = number

	s.opts.logger.WithFields(logrus.Fields{
		"orderID":     order.ID,
		"orderNumber": order.OrderNumber,
		"productID":   order.ProductID,
		"quantity":    order.Quantity,
	}).Info("ORDER:PLACED")

	return &order, nil
}

// Refund returns an order's units to stock.
func (s *CheckoutService) Refund(ctx context.Context, order domain.Order, actorID string) (RestoreResult, error) {
	reference := order.OrderNumber
	if reference == "" {
		reference = order.ID
	}
	return s.ledger.RestoreStock(ctx, order.ProductID, order.Quantity, reference, actorID)
}

func (s *CheckoutService) compensate(ctx context.Context, order domain.Order, actorID string, cause error) {
	log := s.opts.logger.WithFields(logrus.Fields{
		"orderID":   order.ID,
		"productID": order.ProductID,
		"quantity":  order.Quantity,
	})

	if _, err := s.ledger.RestoreStock(ctx, order.ProductID, order.Quantity, order.ID, actorID); err != nil {
		log.WithError(err).WithField("cause", cause.Error()).Error("ORDER:ROLLBACK_FAILED")
		return
	}
	log.WithError(cause).Warn("ORDER:ROLLED_BACK")
}

func (s *CheckoutService) release(ctx context.Context, key string) {
	if err := s.idempotency.ReleaseIdempotency(ctx, key); err != nil {
		s.opts.logger.WithError(err).WithField("idempotencyKey", key).Warn("ORDER:IDEMPOTENCY_RELEASE_FAILED")
	}
}
