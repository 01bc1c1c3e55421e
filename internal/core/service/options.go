package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/oms-inventory/internal/metrics"
)

type options struct {
	logger  logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*options)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock overrides the wall clock used for order dates and SKU tokens.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger: logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}
