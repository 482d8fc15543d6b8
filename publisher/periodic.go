package publisher

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/pkg/notify"
)

// periodicPublisher pushes every 1/rate seconds regardless of updates.
type periodicPublisher[T any] struct {
	*base[T]
	latch *notify.Latch
	done  chan struct{}
	rate  atomic.Uint64 // float64 bits
}

func startPeriodicPublisher[T any](b *base[T], rate float64) *periodicPublisher[T] {
	p := &periodicPublisher[T]{
		base:  b,
		latch: notify.New(),
		done:  make(chan struct{}),
	}
	p.rate.Store(math.Float64bits(rate))
	go p.run()
	return p
}

// Update is a no-op for the periodic strategy.
func (p *periodicPublisher[T]) Update() error {
	return nil
}

// SetRate changes the push rate. It takes effect from the next interval.
func (p *periodicPublisher[T]) SetRate(hz float64) error {
	if !validRate(hz) {
		return errors.WrapInvalid(fmt.Errorf("%w: rate %v", errors.ErrBadParameter, hz),
			"periodicPublisher", "SetRate", "validate rate")
	}
	p.rate.Store(math.Float64bits(hz))
	return nil
}

// Rate returns the current push rate in Hz.
func (p *periodicPublisher[T]) Rate() float64 {
	return math.Float64frombits(p.rate.Load())
}

// Release stops the worker and waits for it up to the release timeout.
func (p *periodicPublisher[T]) Release() {
	p.releaseWorker(p.latch.Stop, p.done)
}

func (p *periodicPublisher[T]) period() time.Duration {
	return time.Duration(float64(time.Second) / p.Rate())
}

func (p *periodicPublisher[T]) run() {
	defer close(p.done)

	next := time.Now().Add(p.period())
	for {
		if p.latch.WaitUntil(next) == notify.SignalStop {
			return
		}
		if time.Now().Before(next) {
			continue
		}

		_ = p.push()

		period := p.period()
		next = next.Add(period)
		// fell more than one period behind: resynchronise instead of bursting
		if now := time.Now(); next.Before(now.Add(-period)) {
			next = now.Add(period)
		}
	}
}
