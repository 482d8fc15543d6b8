// Package notify provides the condition-variable latch that parks worker
// goroutines between updates.
//
// A Latch has three states: Idle, Updated and Stopping. Notify moves Idle to
// Updated; any further Notify calls before the worker consumes the update
// coalesce into it. Stop moves to Stopping from any state and is sticky until
// Reset. The worker parks in a single blocking wait (Wait or WaitUntil) that
// returns as soon as one of these happens:
//
//   - SignalStop: the latch is Stopping
//   - SignalUpdated: an update was pending; the latch returns to Idle
//   - SignalWake: Wake was called; no update is consumed
//   - SignalTimeout: the deadline passed
package notify

import (
	"sync"
	"time"
)

// State is the latch state.
type State int

const (
	Idle State = iota
	Updated
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Updated:
		return "Updated"
	case Stopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// Signal is the reason a wait returned.
type Signal int

const (
	SignalUpdated Signal = iota
	SignalWake
	SignalTimeout
	SignalStop
)

func (s Signal) String() string {
	switch s {
	case SignalUpdated:
		return "updated"
	case SignalWake:
		return "wake"
	case SignalTimeout:
		return "timeout"
	case SignalStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Latch is safe for any number of notifiers and one waiter.
type Latch struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state State
	woken bool

	notifies  uint64
	coalesced uint64
}

// New returns an Idle latch.
func New() *Latch {
	l := &Latch{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Notify marks an update pending. It returns false when the update coalesced
// into one already pending or the latch is stopping.
func (l *Latch) Notify() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case Stopping:
		return false
	case Updated:
		l.coalesced++
		return false
	}
	l.notifies++
	l.state = Updated
	l.cond.Broadcast()
	return true
}

// Wake releases the waiter without marking an update.
func (l *Latch) Wake() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == Stopping {
		return
	}
	l.woken = true
	l.cond.Broadcast()
}

// Stop moves the latch to Stopping. Idempotent.
func (l *Latch) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = Stopping
	l.cond.Broadcast()
}

// Reset returns a stopped latch to Idle so its owner can be restarted.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = Idle
	l.woken = false
}

// State returns the current state.
func (l *Latch) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Coalesced returns how many Notify calls were absorbed by a pending update.
func (l *Latch) Coalesced() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.coalesced
}

// Notifies returns how many Notify calls moved the latch to Updated.
func (l *Latch) Notifies() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notifies
}

// Wait blocks until the latch is updated, woken or stopped.
func (l *Latch) Wait() Signal {
	return l.WaitUntil(time.Time{})
}

// WaitUntil is Wait bounded by deadline. A zero deadline waits forever.
func (l *Latch) WaitUntil(deadline time.Time) Signal {
	l.mu.Lock()
	defer l.mu.Unlock()

	expired := false
	if !deadline.IsZero() {
		if d := time.Until(deadline); d > 0 {
			timer := time.AfterFunc(d, func() {
				l.mu.Lock()
				expired = true
				l.cond.Broadcast()
				l.mu.Unlock()
			})
			defer timer.Stop()
		} else {
			expired = true
		}
	}

	for {
		switch {
		case l.state == Stopping:
			return SignalStop
		case l.state == Updated:
			l.state = Idle
			return SignalUpdated
		case l.woken:
			l.woken = false
			return SignalWake
		case expired:
			return SignalTimeout
		}
		l.cond.Wait()
	}
}
