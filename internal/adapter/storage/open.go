package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rl1809/oms-inventory/internal/config"
	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/port"
)

// Backend is a port.Store that can also be seeded with products.
type Backend interface {
	port.Store
	SaveProduct(ctx context.Context, p domain.Product) error
}

// Open connects the backend selected by cfg.StoreBackend. The returned close
// func releases the underlying connections.
func Open(ctx context.Context, cfg config.Config) (Backend, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendMySQL:
		db, err := sqlx.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping mysql: %w", err)
		}
		return NewMySQLAdapter(db), db.Close, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: cfg.RedisPoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return NewRedisAdapter(rdb), rdb.Close, nil

	case config.BackendMemory:
		return NewMemoryAdapter(), func() error { return nil }, nil
	}

	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
