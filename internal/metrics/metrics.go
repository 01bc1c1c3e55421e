package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/oms-inventory/internal/core/domain"
)

const namespace = "oms_inventory"

// Metrics holds the collectors exported by the inventory core. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	stockMutations         *prometheus.CounterVec
	movementAppendFailures *prometheus.CounterVec
	orderNumberRetries     prometheus.Counter
	lowStockProducts       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stockMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_mutations_total",
			Help:      "Stock mutations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		movementAppendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movement_append_failures_total",
			Help:      "Movement ledger rows that could not be written.",
		}, []string{"movement_type"}),
		orderNumberRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_number_retries_total",
			Help:      "Order number regenerations after a uniqueness conflict.",
		}),
		lowStockProducts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "low_stock_products",
			Help:      "Active products at or below their low-stock threshold.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.stockMutations, m.movementAppendFailures, m.orderNumberRetries, m.lowStockProducts)
	}
	return m
}

func (m *Metrics) ObserveMutation(operation string, err error) {
	if m == nil {
		return
	}
	m.stockMutations.WithLabelValues(operation, Outcome(err)).Inc()
}

func (m *Metrics) MovementAppendFailed(kind domain.MovementType) {
	if m == nil {
		return
	}
	m.movementAppendFailures.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) OrderNumberRetried() {
	if m == nil {
		return
	}
	m.orderNumberRetries.Inc()
}

func (m *Metrics) SetLowStockProducts(n int) {
	if m == nil {
		return
	}
	m.lowStockProducts.Set(float64(n))
}

// Outcome maps an operation error onto a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	default:
		return "error"
	}
}
