package buffer

import (
	"time"

	"github.com/c360/rtkit/metric"
)

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*bufferOptions[T])

// bufferOptions holds internal configuration for buffer instances.
type bufferOptions[T any] struct {
	overflowPolicy  OverflowPolicy
	underflowPolicy UnderflowPolicy
	writeTimeout    time.Duration
	readTimeout     time.Duration
	dropCallback    DropCallback[T]

	// metricsReg is optional - if provided, buffer stats are also exposed as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is used as the component label for Prometheus metrics
	metricsPrefix string
}

// WithOverflowPolicy sets the overflow behavior for the buffer.
// Defaults to DiscardOldest if not specified.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.overflowPolicy = policy
	}
}

// WithUnderflowPolicy sets the empty-read behavior. Defaults to ReturnEmpty.
func WithUnderflowPolicy[T any](policy UnderflowPolicy) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.underflowPolicy = policy
	}
}

// WithWriteTimeout bounds blocking writes. Zero waits forever.
func WithWriteTimeout[T any](d time.Duration) Option[T] {
	return func(opts *bufferOptions[T]) {
		if d > 0 {
			opts.writeTimeout = d
		}
	}
}

// WithReadTimeout bounds blocking reads. Zero waits forever.
func WithReadTimeout[T any](d time.Duration) Option[T] {
	return func(opts *bufferOptions[T]) {
		if d > 0 {
			opts.readTimeout = d
		}
	}
}

// WithConfig applies a policy Config, typically parsed from connector properties.
func WithConfig[T any](cfg Config) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.overflowPolicy = cfg.Overflow
		opts.underflowPolicy = cfg.Underflow
		opts.writeTimeout = cfg.WriteTimeout
		opts.readTimeout = cfg.ReadTimeout
	}
}

// WithMetrics enables Prometheus metrics export for buffer statistics.
// If registry is nil, this option is ignored.
func WithMetrics[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithDropCallback sets a callback function that is called when items are dropped.
func WithDropCallback[T any](callback DropCallback[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.dropCallback = callback
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		overflowPolicy:  DiscardOldest,
		underflowPolicy: ReturnEmpty,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
