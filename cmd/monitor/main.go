package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/oms-inventory/internal/adapter/storage"
	"github.com/rl1809/oms-inventory/internal/config"
	"github.com/rl1809/oms-inventory/internal/core/service"
	"github.com/rl1809/oms-inventory/internal/metrics"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := cfg.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := storage.Open(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to open store")
	}
	logger.WithField("backend", cfg.StoreBackend).Info("connected to store")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ledger := service.NewInventoryLedger(store, store, service.WithLogger(logger), service.WithMetrics(m))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.WithError(err).Debug("health response not written")
		}
	})

	httpServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("metrics server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server error")
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runMonitor(ctx, ledger, m, cfg, logger)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")
	cancel()
	<-done
	logger.Info("monitor stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("failed to stop metrics server")
	}
	logger.Info("metrics server stopped")

	if err := closeStore(); err != nil {
		logger.WithError(err).Warn("failed to close store")
	}
	logger.Info("connections closed")
}

func runMonitor(ctx context.Context, ledger *service.InventoryLedger, m *metrics.Metrics, cfg config.Config, logger logrus.FieldLogger) {
	ticker := time.NewTicker(cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		scan(ctx, ledger, m, cfg.LowStockThreshold, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func scan(ctx context.Context, ledger *service.InventoryLedger, m *metrics.Metrics, threshold *int, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	products, err := ledger.GetLowStockProducts(ctx, threshold)
	if err != nil {
		if ctx.Err() == nil {
			logger.WithError(err).Error("LOW_STOCK:SCAN_FAILED")
		}
		return
	}

	m.SetLowStockProducts(len(products))
	for _, p := range products {
		logger.WithFields(logrus.Fields{
			"productId": p.ID,
			"sku":       p.SKU,
			"stock":     p.Stock,
			"threshold": p.LowStockThreshold,
			"shortage":  p.StockShortage,
		}).Warn("LOW_STOCK")
	}
	logger.WithField("count", len(products)).Info("LOW_STOCK:SCAN_COMPLETE")
}
