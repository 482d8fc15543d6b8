package publisher

import (
	"log/slog"
	"time"

	"github.com/c360/rtkit/metric"
)

// ErrorHandler receives every failed push. It runs on the pushing goroutine.
type ErrorHandler func(err error)

// Option configures a publisher.
type Option func(*options)

type options struct {
	name           string
	logger         *slog.Logger
	onError        ErrorHandler
	releaseTimeout time.Duration
	metricsReg     *metric.MetricsRegistry
}

// WithName sets the name used in logs and metric labels, normally the connector id.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorHandler sets the push failure callback.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		o.onError = h
	}
}

// WithReleaseTimeout bounds Release. Values <= 0 keep the default.
func WithReleaseTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.releaseTimeout = d
		}
	}
}

// WithMetrics exports push counters. Ignored when registry is nil.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.metricsReg = registry
	}
}

func applyOptions(opts ...Option) options {
	o := options{
		name:           "publisher",
		logger:         slog.Default(),
		releaseTimeout: DefaultReleaseTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
