package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func resetRedisProduct(t *testing.T, client *redis.Client, adapter *RedisAdapter, p domain.Product) {
	ctx := context.Background()
	client.Del(ctx, productKeyPrefix+p.ID, movementKeyPrefix+p.ID)
	require.NoError(t, adapter.SaveProduct(ctx, p))
}

func TestRedisAtomicDeduct_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetRedisProduct(t, client, adapter, domain.Product{ID: "test-item", Stock: 10, IsActive: true})

	prev, cur, err := adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{
		ProductID:     "test-item",
		Quantity:      3,
		MovementType:  domain.MovementSale,
		ReferenceType: domain.ReferenceOrder,
		ReferenceID:   "order-1",
		ActorID:       "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, prev)
	assert.Equal(t, 7, cur)

	p, err := adapter.GetProduct(ctx, "test-item")
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)

	movements, err := adapter.ListMovements(ctx, "test-item")
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, -3, movements[0].Quantity)
	assert.Equal(t, 10, movements[0].BalanceBefore)
	assert.Equal(t, 7, movements[0].BalanceAfter)
	assert.Equal(t, "order-1", movements[0].ReferenceID)
}

func TestRedisAtomicDeduct_InsufficientStock(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetRedisProduct(t, client, adapter, domain.Product{ID: "test-item", Stock: 5, IsActive: true})

	_, _, err := adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{ProductID: "test-item", Quantity: 10, MovementType: domain.MovementSale})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)

	p, err := adapter.GetProduct(ctx, "test-item")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	movements, _ := adapter.ListMovements(ctx, "test-item")
	assert.Empty(t, movements)
}

func TestRedisAtomicDeduct_KeyNotExists(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, productKeyPrefix+"nonexistent")

	_, _, err := adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{ProductID: "nonexistent", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = adapter.GetProduct(ctx, "nonexistent")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestRedisAtomicDeduct_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	initialStock := 20
	totalRequests := 50
	resetRedisProduct(t, client, adapter, domain.Product{ID: "concurrent-test", Stock: initialStock, IsActive: true})

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := adapter.AtomicDeduct(ctx, port.AtomicDeductRequest{ProductID: "concurrent-test", Quantity: 1, MovementType: domain.MovementSale})
			if err == nil {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())

	p, err := adapter.GetProduct(ctx, "concurrent-test")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)

	movements, _ := adapter.ListMovements(ctx, "concurrent-test")
	assert.Len(t, movements, initialStock)
}

func TestRedisIncrementAndUpdateStock(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetRedisProduct(t, client, adapter, domain.Product{ID: "test-item", Stock: 5, IsActive: true})

	prev, cur, err := adapter.IncrementStock(ctx, "test-item", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, prev)
	assert.Equal(t, 8, cur)

	require.NoError(t, adapter.UpdateProductStock(ctx, "test-item", 2))
	p, _ := adapter.GetProduct(ctx, "test-item")
	assert.Equal(t, 2, p.Stock)

	_, _, err = adapter.IncrementStock(ctx, "missing-item", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.ErrorIs(t, adapter.UpdateProductStock(ctx, "missing-item", 1), domain.ErrProductNotFound)
}

func TestRedisListLowStockProducts(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, productSetKey)
	resetRedisProduct(t, client, adapter, domain.Product{ID: "low-a", Stock: 3, LowStockThreshold: 5, IsActive: true})
	resetRedisProduct(t, client, adapter, domain.Product{ID: "low-b", Stock: 1, LowStockThreshold: 5, IsActive: true})
	resetRedisProduct(t, client, adapter, domain.Product{ID: "low-c", Stock: 9, LowStockThreshold: 5, IsActive: true})
	resetRedisProduct(t, client, adapter, domain.Product{ID: "low-d", Stock: 0, LowStockThreshold: 5, IsActive: false})

	products, err := adapter.ListLowStockProducts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "low-b", products[0].ID)
	assert.Equal(t, "low-a", products[1].ID)
}

func TestRedisOrderNumbers(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, ordersKeyPrefix+"991231", orderKeyPrefix+"991231-001", orderKeyPrefix+"991231-012")

	_, found, err := adapter.MaxOrderNumberForDate(ctx, "991231")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, adapter.InsertOrder(ctx, domain.Order{ID: "o-1", OrderNumber: "991231-012"}))
	require.NoError(t, adapter.InsertOrder(ctx, domain.Order{ID: "o-2", OrderNumber: "991231-001"}))
	assert.ErrorIs(t, adapter.InsertOrder(ctx, domain.Order{ID: "o-3", OrderNumber: "991231-001"}), domain.ErrDuplicateOrderNumber)

	max, found, err := adapter.MaxOrderNumberForDate(ctx, "991231")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "991231-012", max)
}

func TestRedisSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, "concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	assert.Equal(t, int32(1), successCount.Load())
}

func TestRedisReleaseIdempotency(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	client.Del(ctx, "release-idem-key")

	ok, err := adapter.SetIdempotency(ctx, "release-idem-key")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, adapter.ReleaseIdempotency(ctx, "release-idem-key"))
	ok, err = adapter.SetIdempotency(ctx, "release-idem-key")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisListMovements_KeepsAppendOrder(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)
	resetRedisProduct(t, client, adapter, domain.Product{ID: "order-item", Stock: 10, IsActive: true})

	later := domain.NewMovement("order-item", domain.MovementSale, 10, 7, "a")
	earlier := domain.NewMovement("order-item", domain.MovementSale, 7, 5, "b")
	earlier.CreatedAt = later.CreatedAt.Add(-time.Second)
	require.NoError(t, adapter.InsertMovement(ctx, later))
	require.NoError(t, adapter.InsertMovement(ctx, earlier))

	movements, err := adapter.ListMovements(ctx, "order-item")
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, later.ID, movements[0].ID)
	assert.Equal(t, earlier.ID, movements[1].ID)
}
