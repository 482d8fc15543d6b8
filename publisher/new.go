package publisher

import (
	"github.com/c360/rtkit/pkg/notify"
)

// newPublisher pushes from a worker goroutine once per latch wake.
type newPublisher[T any] struct {
	*base[T]
	latch *notify.Latch
	done  chan struct{}
}

func startNewPublisher[T any](b *base[T]) *newPublisher[T] {
	p := &newPublisher[T]{
		base:  b,
		latch: notify.New(),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

// Update marks the latch and returns without waiting for the push.
func (p *newPublisher[T]) Update() error {
	if p.latch.State() == notify.Stopping {
		return nil
	}
	if !p.latch.Notify() {
		p.recordCoalesced()
	}
	return nil
}

// Release stops the worker and waits for it up to the release timeout.
func (p *newPublisher[T]) Release() {
	p.releaseWorker(p.latch.Stop, p.done)
}

func (p *newPublisher[T]) run() {
	defer close(p.done)

	for {
		switch p.latch.Wait() {
		case notify.SignalStop:
			return
		case notify.SignalUpdated:
			_ = p.push()
		}
	}
}
