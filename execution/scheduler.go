package execution

import (
	"context"
	"time"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/pkg/notify"
)

// run is the scheduler goroutine.
func (c *Context) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	c.lifecycle(ctx, component.HookStartup)

	period := c.period()
	last := time.Now()
	next := last.Add(period)
	for {
		var sig notify.Signal
		if c.kind == Periodic {
			sig = c.latch.WaitUntil(next)
		} else {
			sig = c.latch.Wait()
		}
		if sig == notify.SignalStop {
			break
		}

		switch c.kind {
		case ExternalTrigger:
			c.step(ctx, sig == notify.SignalUpdated)

		case Periodic:
			due := !time.Now().Before(next)
			changed := c.step(ctx, due)
			if due {
				last = next
			}
			if changed {
				// a new rate applies from the next sleep
				period = c.period()
			}
			if due || changed {
				next = last.Add(period)
				// fell more than one period behind: resynchronise instead of bursting
				if now := time.Now(); next.Before(now.Add(-period)) {
					last = now
					next = now.Add(period)
				}
			}
		}
	}

	c.discardPending()
	c.lifecycle(ctx, component.HookShutdown)
}

// step applies pending transitions and rate changes and, when execute is
// set, runs one round. It reports whether the rate changed.
func (c *Context) step(ctx context.Context, execute bool) bool {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.applyPending(ctx)
	changed := c.applyRateChange(ctx)
	if execute {
		c.round(ctx)
	}
	return changed
}

func (c *Context) period() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(float64(time.Second) / c.rate)
}

// round visits every attached component in registration order.
func (c *Context) round(ctx context.Context) {
	start := time.Now()

	c.mu.Lock()
	c.started++
	comps := c.comps
	c.mu.Unlock()

	for _, a := range comps {
		state, ok := c.stateOf(a)
		if !ok {
			continue
		}

		if a.owned && state != component.StateError {
			if err := a.obj.ApplyPendingMode(ctx, a.handle); err != nil {
				c.hookFailed(ctx, a, component.HookModeChanged, err)
				c.enterError(ctx, a)
				continue
			}
		}

		switch state {
		case component.StateActive:
			if err := c.invoke(ctx, a, component.HookExecute); err != nil {
				c.enterError(ctx, a)
				continue
			}
			if err := c.invoke(ctx, a, component.HookStateUpdate); err != nil {
				c.enterError(ctx, a)
			}
		case component.StateError:
			_ = c.invoke(ctx, a, component.HookError)
		}
	}

	c.mu.Lock()
	c.completed++
	close(c.roundDone)
	c.roundDone = make(chan struct{})
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordRound(c.id, c.kind.String(), time.Since(start))
	}
}

// applyPending applies the transitions requested since the last boundary.
func (c *Context) applyPending(ctx context.Context) {
	type work struct {
		a   *attachment
		req *request
	}

	c.mu.Lock()
	var todo []work
	for _, a := range c.comps {
		if a.pending != nil {
			todo = append(todo, work{a, a.pending})
			a.pending = nil
		}
	}
	c.mu.Unlock()

	for _, w := range todo {
		state, ok := c.stateOf(w.a)
		switch {
		case !ok:
			w.req.done <- cancelled(w.req.t)
		case state != w.req.t.from():
			// the component failed in a round after the request was accepted
			w.req.done <- errors.WrapInvalid(
				errors.ErrPreconditionNotMet, "ExecutionContext", w.req.t.String(), "state recheck")
		default:
			w.req.done <- c.apply(ctx, w.a, w.req.t)
		}
	}
}

// apply runs the transition hook and moves the component. A failing
// OnActivated or OnDeactivated leads to Error; a failing OnReset leaves the
// component in Error.
func (c *Context) apply(ctx context.Context, a *attachment, t transition) error {
	if err := c.invoke(ctx, a, t.hook()); err != nil {
		if t != reset {
			c.enterError(ctx, a)
		}
		return errors.Wrap(err, "ExecutionContext", t.String(), t.hook().String())
	}
	c.setState(a, t.to())
	return nil
}

// applyRateChange runs OnRateChanged for every attached component after
// SetRate. It reports whether there was a change to apply.
func (c *Context) applyRateChange(ctx context.Context) bool {
	c.mu.Lock()
	if !c.rateChanged {
		c.mu.Unlock()
		return false
	}
	c.rateChanged = false
	comps := c.comps
	rate := c.rate
	c.mu.Unlock()

	c.logger.Info("rate changed", "rate", rate)
	for _, a := range comps {
		state, ok := c.stateOf(a)
		if !ok || state == component.StateError {
			continue
		}
		if err := c.invoke(ctx, a, component.HookRateChanged); err != nil {
			c.enterError(ctx, a)
		}
	}
	return true
}

// lifecycle runs OnStartup or OnShutdown for every attached component.
// A failing OnStartup puts the component into Error.
func (c *Context) lifecycle(ctx context.Context, hook component.Hook) {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.mu.Lock()
	comps := c.comps
	c.mu.Unlock()

	for _, a := range comps {
		state, ok := c.stateOf(a)
		if !ok {
			continue
		}
		err := c.invoke(ctx, a, hook)
		if err != nil && hook == component.HookStartup && state != component.StateError {
			c.enterError(ctx, a)
		}
	}
}

// discardPending fails every transition still pending when the scheduler exits.
func (c *Context) discardPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range c.comps {
		if a.pending != nil {
			a.pending.done <- cancelled(a.pending.t)
			a.pending = nil
		}
	}
}

// invoke calls one hook with panics intercepted. Failures are logged and
// counted here; callers decide the state change.
func (c *Context) invoke(ctx context.Context, a *attachment, hook component.Hook) error {
	err := a.obj.Invoke(ctx, hook, a.handle)
	if err != nil {
		c.hookFailed(ctx, a, hook, err)
	}
	return err
}

func (c *Context) hookFailed(ctx context.Context, a *attachment, hook component.Hook, err error) {
	a.obj.Logger().ContextError(ctx, c.id, "hook failed", err, "hook", hook.String())
	if c.metrics != nil {
		c.metrics.RecordHookFailure(a.obj.Name(), hook.String())
	}
}

// enterError moves a component to Error and runs OnAborting once.
func (c *Context) enterError(ctx context.Context, a *attachment) {
	if state, ok := c.stateOf(a); !ok || state == component.StateError {
		return
	}
	c.setState(a, component.StateError)
	_ = c.invoke(ctx, a, component.HookAborting)
}

func (c *Context) stateOf(a *attachment) (component.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return a.state, !a.removed
}

func (c *Context) setState(a *attachment, s component.State) {
	c.mu.Lock()
	from := a.state
	a.state = s
	c.mu.Unlock()

	c.recordState(a, s)
	if c.metrics != nil {
		c.metrics.RecordTransition(a.obj.Name(), s.String())
	}
	c.logger.Debug("component state changed", "component", a.obj.Name(), "from", from.String(), "to", s.String())
}

func (c *Context) recordState(a *attachment, s component.State) {
	if c.metrics != nil {
		c.metrics.RecordComponentState(a.obj.Name(), c.id, int(s))
	}
}
