package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/oms-inventory/internal/adapter/storage"
	"github.com/rl1809/oms-inventory/internal/config"
	"github.com/rl1809/oms-inventory/internal/core/domain"
	"github.com/rl1809/oms-inventory/internal/core/service"
)

const (
	productID     = "stress-test-item"
	initialStock  = 20
	totalRequests = 50
)

type result struct {
	name      string
	success   int32
	fail      int32
	final     int
	movements int
	elapsed   time.Duration
}

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := cfg.Logger()
	// Per-request noise would drown the summary.
	logger.SetLevel(logrus.ErrorLevel)

	ctx := context.Background()
	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to open store")
	}
	defer closeStore()

	ledger := service.NewInventoryLedger(store, store, service.WithLogger(logger))
	sequencer := service.NewOrderSequencer(store, service.WithLogger(logger))
	checkout := service.NewCheckoutService(store, store, ledger, sequencer, service.WithLogger(logger))

	runs := []struct {
		name string
		call func(id int) error
	}{
		{"deduct/atomic", func(id int) error {
			_, err := ledger.ValidateAndDeductStock(ctx, service.DeductRequest{
				ProductID: productID, Quantity: 1, ActorID: fmt.Sprintf("user-%d", id), Mode: service.DeductAtomic,
			})
			return err
		}},
		{"deduct/read_write", func(id int) error {
			_, err := ledger.ValidateAndDeductStock(ctx, service.DeductRequest{
				ProductID: productID, Quantity: 1, ActorID: fmt.Sprintf("user-%d", id), Mode: service.DeductReadWrite,
			})
			return err
		}},
		{"checkout", func(id int) error {
			_, err := checkout.PlaceOrder(ctx, service.CheckoutRequest{
				RequestID:  fmt.Sprintf("stress-%d-%d", time.Now().UnixNano(), id),
				CustomerID: fmt.Sprintf("user-%d", id),
				ProductID:  productID,
				PCCC:       "P123456789012",
				Quantity:   1,
			})
			return err
		}},
	}

	for _, run := range runs {
		res, err := execute(ctx, store, run.name, run.call)
		if err != nil {
			logger.WithError(err).Fatalf("%s failed", run.name)
		}
		report(res)
	}
}

func execute(ctx context.Context, store storage.Backend, name string, call func(id int) error) (result, error) {
	if err := store.SaveProduct(ctx, domain.Product{
		ID:                productID,
		Name:              "Stress Test Item",
		Stock:             initialStock,
		LowStockThreshold: 5,
		IsActive:          true,
	}); err != nil {
		return result{}, fmt.Errorf("seed product: %w", err)
	}
	before, err := store.ListMovements(ctx, productID)
	if err != nil {
		return result{}, err
	}

	var successCount atomic.Int32
	var failCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := call(id); err == nil {
				successCount.Add(1)
			} else {
				failCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	p, err := store.GetProduct(ctx, productID)
	if err != nil {
		return result{}, err
	}
	after, err := store.ListMovements(ctx, productID)
	if err != nil {
		return result{}, err
	}

	return result{
		name:      name,
		success:   successCount.Load(),
		fail:      failCount.Load(),
		final:     p.Stock,
		movements: len(after) - len(before),
		elapsed:   elapsed,
	}, nil
}

func report(r result) {
	fmt.Printf("========== %s ==========\n", r.name)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", r.success)
	fmt.Printf("Failed:           %d\n", r.fail)
	fmt.Printf("Final Stock:      %d\n", r.final)
	fmt.Printf("New Movements:    %d\n", r.movements)
	fmt.Printf("Duration:         %v\n", r.elapsed)

	// Each success took one unit, so anything beyond the starting stock is oversold.
	oversold := int(r.success) - (initialStock - r.final)
	switch {
	case r.success > int32(initialStock) || oversold > 0:
		fmt.Printf("FAIL: oversold by %d units\n", oversold)
	case r.final < 0:
		fmt.Printf("FAIL: stock went negative (%d)\n", r.final)
	default:
		fmt.Printf("PASS: %d sold, none oversold\n", r.success)
	}
	fmt.Println()
}
