package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

func TestMemoryAtomicDeduct(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()
	require.NoError(t, adapter.SaveProduct(ctx, domain.Product{ID: "item", Stock: 5, IsActive: true}))

	prev, cur, err := adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{
		ProductID:     "item",
		Quantity:      2,
		MovementType:  domain.MovementSale,
		ReferenceType: domain.ReferenceOrder,
		ReferenceID:   "order-1",
		ActorID:       "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, prev)
	assert.Equal(t, 3, cur)

	_, _, err = adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{ProductID: "item", Quantity: 4, MovementType: domain.MovementSale})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)

	_, _, err = adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{ProductID: "missing", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	movements, err := adapter.ListMovements(ctx, "item")
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "order-1", movements[0].ReferenceID)
	assert.Equal(t, -2, movements[0].Quantity)
}

func TestMemoryAtomicDeduct_Concurrent(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()
	initialStock := 20
	require.NoError(t, adapter.SaveProduct(ctx, domain.Product{ID: "item", Stock: initialStock, IsActive: true}))

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{ProductID: "item", Quantity: 1}); err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	p, err := adapter.GetProduct(ctx, "item")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestMemoryListLowStockProducts(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()
	for _, p := range []domain.Product{
		{ID: "b", Stock: 2, LowStockThreshold: 5, IsActive: true},
		{ID: "a", Stock: 2, LowStockThreshold: 5, IsActive: true},
		{ID: "c", Stock: 0, LowStockThreshold: 5, IsActive: true},
		{ID: "d", Stock: 8, LowStockThreshold: 5, IsActive: true},
		{ID: "e", Stock: 0, LowStockThreshold: 5, IsActive: false},
	} {
		require.NoError(t, adapter.SaveProduct(ctx, p))
	}

	products, err := adapter.ListLowStockProducts(ctx, nil)
	require.NoError(t, err)
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	override := 1
	products, err = adapter.ListLowStockProducts(ctx, &override)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "c", products[0].ID)
}

func TestMemoryOrders(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	_, found, err := adapter.MaxOrderNumberForDate(ctx, "240823")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, adapter.InsertOrder(ctx, domain.Order{ID: "o-1", OrderNumber: "240823-002"}))
	require.NoError(t, adapter.InsertOrder(ctx, domain.Order{ID: "o-2", OrderNumber: "240823-010"}))
	require.NoError(t, adapter.InsertOrder(ctx, domain.Order{ID: "o-3", OrderNumber: "240824-050"}))
	assert.ErrorIs(t, adapter.InsertOrder(ctx, domain.Order{ID: "o-4", OrderNumber: "240823-002"}), domain.ErrDuplicateOrderNumber)

	max, found, err := adapter.MaxOrderNumberForDate(ctx, "240823")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "240823-010", max)

	o, ok := adapter.GetOrder(ctx, "240823-002")
	require.True(t, ok)
	assert.Equal(t, "o-1", o.ID)

	o, ok = adapter.GetOrder(ctx, "240823-003")
	assert.False(t, ok)
	assert.Nil(t, o)
}

func TestMemorySetIdempotency(t *testing.T) {
	ctx := context.Background()
	adapter := NewMemoryAdapter()

	ok, err := adapter.SetIdempotency(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.SetIdempotency(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, adapter.ReleaseIdempotency(ctx, "key"))
	ok, err = adapter.SetIdempotency(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
}
