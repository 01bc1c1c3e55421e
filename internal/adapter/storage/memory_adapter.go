package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

var _ port.Store = (*MemoryAdapter)(nil)

// MemoryAdapter keeps the whole store in process. Every method holds the
// same lock, so AtomicDeduct is as indivisible as its SQL and Lua counterparts.
type MemoryAdapter struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	movements   map[string][]domain.Movement
	orders      map[string]domain.Order
	idempotency map[string]struct{}
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products:    make(map[string]domain.Product),
		movements:   make(map[string][]domain.Movement),
		orders:      make(map[string]domain.Order),
		idempotency: make(map[string]struct{}),
	}
}

// SaveProduct inserts or replaces a product row.
func (m *MemoryAdapter) SaveProduct(_ context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	m.products[p.ID] = p
	return nil
}

func (m *MemoryAdapter) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	return &p, nil
}

func (m *MemoryAdapter) UpdateProductStock(_ context.Context, productID string, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	p.Stock = stock
	p.UpdatedAt = time.Now()
	m.products[productID] = p
	return nil
}

func (m *MemoryAdapter) IncrementStock(_ context.Context, productID string, delta int) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return 0, 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	previous := p.Stock
	p.Stock += delta
	p.UpdatedAt = time.Now()
	m.products[productID] = p
	return previous, p.Stock, nil
}

func (m *MemoryAdapter) AtomicDeduct(_ context.Context, req port.AtomicDeductRequest) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[req.ProductID]
	if !ok {
		return 0, 0, &domain.ProductNotFoundError{ProductID: req.ProductID}
	}
	if p.Stock < req.Quantity {
		return p.Stock, p.Stock, &domain.InsufficientStockError{
			ProductID: req.ProductID,
			Requested: req.Quantity,
			Available: p.Stock,
		}
	}

	previous := p.Stock
	p.Stock -= req.Quantity
	p.UpdatedAt = time.Now()
	m.products[req.ProductID] = p

	mv := domain.NewMovement(req.ProductID, req.MovementType, previous, p.Stock, req.ActorID).
		WithReference(req.ReferenceType, req.ReferenceID).
		WithNote(req.Note)
	m.movements[req.ProductID] = append(m.movements[req.ProductID], mv)

	return previous, p.Stock, nil
}

func (m *MemoryAdapter) ListLowStockProducts(_ context.Context, thresholdOverride *int) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Product
	for _, p := range m.products {
		if !p.IsActive {
			continue
		}
		threshold := p.LowStockThreshold
		if thresholdOverride != nil {
			threshold = *thresholdOverride
		}
		if p.Stock <= threshold {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Stock != result[j].Stock {
			return result[i].Stock < result[j].Stock
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MemoryAdapter) InsertMovement(_ context.Context, movement domain.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements[movement.ProductID] = append(m.movements[movement.ProductID], movement)
	return nil
}

func (m *MemoryAdapter) ListMovements(_ context.Context, productID string) ([]domain.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]domain.Movement, len(m.movements[productID]))
	copy(list, m.movements[productID])
	return list, nil
}

func (m *MemoryAdapter) MaxOrderNumberForDate(_ context.Context, dateString string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max string
	prefix := dateString + "-"
	for number := range m.orders {
		if strings.HasPrefix(number, prefix) && number > max {
			max = number
		}
	}
	return max, max != "", nil
}

func (m *MemoryAdapter) InsertOrder(_ context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.orders[order.OrderNumber]; exists {
		return domain.ErrDuplicateOrderNumber
	}
	m.orders[order.OrderNumber] = order
	return nil
}

// GetOrder looks an order up by its number.
func (m *MemoryAdapter) GetOrder(_ context.Context, orderNumber string) (*domain.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok {
		return nil, false
	}
	return &o, true
}

func (m *MemoryAdapter) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.idempotency[key]; exists {
		return false, nil
	}
	m.idempotency[key] = struct{}{}
	return true, nil
}

func (m *MemoryAdapter) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotency, key)
	return nil
}
