package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

const (
	productKeyPrefix  = "product:"
	movementKeyPrefix = "movements:"
	ordersKeyPrefix   = "orders:"
	orderKeyPrefix    = "order:"
	productSetKey     = "products"
	idempotencyKeyTTL = 24 * time.Hour
)

// Script results are {status, previous, current}.
const (
	scriptNotFound     = 0
	scriptOK           = 1
	scriptInsufficient = -1
)

var deductStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

if redis.call('EXISTS', key) == 0 then
	return {0, 0, 0}
end

local current = tonumber(redis.call('HGET', key, 'stock') or '0')
if current < quantity then
	return {-1, current, current}
end

local updated = redis.call('HINCRBY', key, 'stock', -quantity)
redis.call('HSET', key, 'updated_at', ARGV[3])

local movement = cjson.decode(ARGV[2])
movement['quantity'] = updated - current
movement['balance_before'] = current
movement['balance_after'] = updated
redis.call('RPUSH', KEYS[2], cjson.encode(movement))

return {1, current, updated}
`)

var incrementStockScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

if redis.call('EXISTS', key) == 0 then
	return {0, 0, 0}
end

local updated = redis.call('HINCRBY', key, 'stock', delta)
redis.call('HSET', key, 'updated_at', ARGV[2])
return {1, updated - delta, updated}
`)

var setStockScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'stock', ARGV[1], 'updated_at', ARGV[2])
return 1
`)

var _ port.Store = (*RedisAdapter)(nil)

type redisProduct struct {
	ID                string `redis:"id"`
	Name              string `redis:"name"`
	SKU               string `redis:"sku"`
	Stock             int    `redis:"stock"`
	LowStockThreshold int    `redis:"low_stock_threshold"`
	IsActive          bool   `redis:"is_active"`
	UpdatedAt         int64  `redis:"updated_at"`
}

func (p redisProduct) toDomain() domain.Product {
	return domain.Product{
		ID:                p.ID,
		Name:              p.Name,
		SKU:               p.SKU,
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
		IsActive:          p.IsActive,
		UpdatedAt:         time.Unix(p.UpdatedAt, 0),
	}
}

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SaveProduct(ctx context.Context, p domain.Product) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, productKeyPrefix+p.ID, redisProduct{
			ID:                p.ID,
			Name:              p.Name,
			SKU:               p.SKU,
			Stock:             p.Stock,
			LowStockThreshold: p.LowStockThreshold,
			IsActive:          p.IsActive,
			UpdatedAt:         p.UpdatedAt.Unix(),
		})
		pipe.SAdd(ctx, productSetKey, p.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return nil
}

func (r *RedisAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	cmd := r.client.HGetAll(ctx, productKeyPrefix+productID)
	fields, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", productID, err)
	}
	if len(fields) == 0 {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}

	var rp redisProduct
	if err := cmd.Scan(&rp); err != nil {
		return nil, fmt.Errorf("scan product %s: %w", productID, err)
	}
	p := rp.toDomain()
	return &p, nil
}

func (r *RedisAdapter) UpdateProductStock(ctx context.Context, productID string, stock int) error {
	key := productKeyPrefix + productID
	ok, err := setStockScript.Run(ctx, r.client, []string{key}, stock, time.Now().Unix()).Int()
	if err != nil {
		return fmt.Errorf("update stock %s: %w", productID, err)
	}
	if ok == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (r *RedisAdapter) IncrementStock(ctx context.Context, productID string, delta int) (int, int, error) {
	key := productKeyPrefix + productID
	res, err := incrementStockScript.Run(ctx, r.client, []string{key}, delta, time.Now().Unix()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("increment stock %s: %w", productID, err)
	}
	if res[0] == scriptNotFound {
		return 0, 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	return int(res[1]), int(res[2]), nil
}

func (r *RedisAdapter) AtomicDeduct(ctx context.Context, req port.AtomicDeductRequest) (int, int, error) {
	// Balances and delta are filled in by the script.
	mv := domain.NewMovement(req.ProductID, req.MovementType, 0, 0, req.ActorID).
		WithReference(req.ReferenceType, req.ReferenceID).
		WithNote(req.Note)
	payload, err := json.Marshal(mv)
	if err != nil {
		return 0, 0, fmt.Errorf("encode movement: %w", err)
	}

	keys := []string{productKeyPrefix + req.ProductID, movementKeyPrefix + req.ProductID}
	res, err := deductStockScript.Run(ctx, r.client, keys, req.Quantity, payload, time.Now().Unix()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("deduct stock %s: %w", req.ProductID, err)
	}

	switch res[0] {
	case scriptNotFound:
		return 0, 0, &domain.ProductNotFoundError{ProductID: req.ProductID}
	case scriptInsufficient:
		return int(res[1]), int(res[2]), &domain.InsufficientStockError{
			ProductID: req.ProductID,
			Requested: req.Quantity,
			Available: int(res[1]),
		}
	}
	return int(res[1]), int(res[2]), nil
}

func (r *RedisAdapter) ListLowStockProducts(ctx context.Context, thresholdOverride *int) ([]domain.Product, error) {
	ids, err := r.client.SMembers(ctx, productSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, productKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load products: %w", err)
	}

	var result []domain.Product
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}
		var rp redisProduct
		if err := cmd.Scan(&rp); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if !rp.IsActive {
			continue
		}
		threshold := rp.LowStockThreshold
		if thresholdOverride != nil {
			threshold = *thresholdOverride
		}
		if rp.Stock <= threshold {
			result = append(result, rp.toDomain())
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Stock < result[j].Stock })
	return result, nil
}

func (r *RedisAdapter) InsertMovement(ctx context.Context, movement domain.Movement) error {
	payload, err := json.Marshal(movement)
	if err != nil {
		return fmt.Errorf("encode movement: %w", err)
	}
	return r.client.RPush(ctx, movementKeyPrefix+movement.ProductID, payload).Err()
}

func (r *RedisAdapter) ListMovements(ctx context.Context, productID string) ([]domain.Movement, error) {
	raw, err := r.client.LRange(ctx, movementKeyPrefix+productID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list movements %s: %w", productID, err)
	}
	movements := make([]domain.Movement, 0, len(raw))
	for _, item := range raw {
		var mv domain.Movement
		if err := json.Unmarshal([]byte(item), &mv); err != nil {
			return nil, fmt.Errorf("decode movement: %w", err)
		}
		movements = append(movements, mv)
	}
	return movements, nil
}

func (r *RedisAdapter) MaxOrderNumberForDate(ctx context.Context, dateString string) (string, bool, error) {
	top, err := r.client.ZRevRange(ctx, ordersKeyPrefix+dateString, 0, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("max order number %s: %w", dateString, err)
	}
	if len(top) == 0 {
		return "", false, nil
	}
	return top[0], true, nil
}

func (r *RedisAdapter) InsertOrder(ctx context.Context, order domain.Order) error {
	if len(order.OrderNumber) < 10 {
		return fmt.Errorf("malformed order number %q", order.OrderNumber)
	}
	dateString, seq := order.OrderNumber[:6], order.OrderNumber[7:]
	score, err := strconv.Atoi(seq)
	if err != nil {
		return fmt.Errorf("malformed order number %q: %w", order.OrderNumber, err)
	}

	added, err := r.client.ZAddNX(ctx, ordersKeyPrefix+dateString, redis.Z{
		Score:  float64(score),
		Member: order.OrderNumber,
	}).Result()
	if err != nil {
		return fmt.Errorf("reserve order number: %w", err)
	}
	if added == 0 {
		return domain.ErrDuplicateOrderNumber
	}

	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	return r.client.Set(ctx, orderKeyPrefix+order.OrderNumber, payload, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release idempotency: %w", err)
	}
	return nil
}
