// Package publisher implements the delivery strategies that move records from a
// connector's producer buffer to its consumer.
//
// Three kinds exist:
//
//   - Flush pushes synchronously on the goroutine that calls Update.
//   - New owns one worker goroutine parked on a notify.Latch. Update marks the
//     latch and returns; bursts of updates coalesce into a single push.
//   - Periodic owns one worker goroutine that pushes every 1/rate seconds and
//     ignores Update.
//
// A publisher never retries. Push failures go to the error handler supplied
// with WithErrorHandler, which the owning connector uses to tear itself down
// on a lost connection.
package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/pkg/buffer"
)

// Kind selects a publisher strategy.
type Kind int

const (
	KindNew Kind = iota
	KindPeriodic
	KindFlush
)

func (k Kind) String() string {
	switch k {
	case KindNew:
		return "New"
	case KindPeriodic:
		return "Periodic"
	case KindFlush:
		return "Flush"
	default:
		return "Unknown"
	}
}

// ParseKind maps a dataport.subscription_type value onto a Kind. Matching is
// case-insensitive and an empty value selects New.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "new":
		return KindNew, nil
	case "periodic":
		return KindPeriodic, nil
	case "flush":
		return KindFlush, nil
	default:
		return 0, fmt.Errorf("%w: unknown subscription type %q", errors.ErrBadParameter, s)
	}
}

// Consumer receives records pushed by a publisher. Transport channels implement it.
type Consumer[T any] interface {
	Push(ctx context.Context, item T) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc[T any] func(ctx context.Context, item T) error

// Push calls f.
func (f ConsumerFunc[T]) Push(ctx context.Context, item T) error {
	return f(ctx, item)
}

// Publisher is the delivery strategy of one connector.
type Publisher interface {
	// Update signals that new data is available in the producer buffer.
	Update() error

	// Release stops background activity. Idempotent, safe from any goroutine,
	// and bounded by the release timeout.
	Release()

	// Kind reports the strategy.
	Kind() Kind
}

// RateSetter is implemented by publishers whose cadence can change at runtime.
type RateSetter interface {
	SetRate(hz float64) error
	Rate() float64
}

// New constructs the publisher selected by cfg.Kind.
// A nil source or consumer is a programming error and returns ErrBadParameter.
func New[T any](cfg Config, source buffer.Buffer[T], consumer Consumer[T], opts ...Option) (Publisher, error) {
	if source == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: nil source buffer", errors.ErrBadParameter),
			"publisher", "New", "validate source")
	}
	if consumer == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: nil consumer", errors.ErrBadParameter),
			"publisher", "New", "validate consumer")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b, err := newBase(cfg, source, consumer, applyOptions(opts...))
	if err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindFlush:
		return &flushPublisher[T]{base: b}, nil
	case KindNew:
		return startNewPublisher(b), nil
	case KindPeriodic:
		return startPeriodicPublisher(b, cfg.Rate), nil
	default:
		b.close()
		return nil, errors.WrapInvalid(fmt.Errorf("%w: kind %d", errors.ErrUnsupported, cfg.Kind),
			"publisher", "New", "select kind")
	}
}
