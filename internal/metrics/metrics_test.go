package metrics

import (
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/oms-inventory/internal/core/domain"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "insufficient_stock", Outcome(fmt.Errorf("x: %w", &domain.InsufficientStockError{})))
	assert.Equal(t, "not_found", Outcome(&domain.ProductNotFoundError{ProductID: "p"}))
	assert.Equal(t, "invalid_quantity", Outcome(&domain.InvalidQuantityError{Value: -1}))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveMutation("deduct", nil)
	m.ObserveMutation("deduct", nil)
	m.ObserveMutation("deduct", &domain.InsufficientStockError{})
	m.MovementAppendFailed(domain.MovementSale)
	m.OrderNumberRetried()
	m.SetLowStockProducts(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockMutations.WithLabelValues("deduct", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockMutations.WithLabelValues("deduct", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.movementAppendFailures.WithLabelValues("sale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderNumberRetries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.lowStockProducts))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveMutation("deduct", nil)
		m.MovementAppendFailed(domain.MovementSale)
		m.OrderNumberRetried()
		m.SetLowStockProducts(1)
	})
}
