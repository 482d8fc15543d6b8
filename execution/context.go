package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/pkg/notify"
)

// transition is a lifecycle change requested through the outward API.
type transition int

const (
	activate transition = iota
	deactivate
	reset
)

func (t transition) String() string {
	switch t {
	case activate:
		return "activate"
	case deactivate:
		return "deactivate"
	default:
		return "reset"
	}
}

func (t transition) from() component.State {
	switch t {
	case activate:
		return component.StateInactive
	case deactivate:
		return component.StateActive
	default:
		return component.StateError
	}
}

func (t transition) to() component.State {
	if t == activate {
		return component.StateActive
	}
	return component.StateInactive
}

func (t transition) hook() component.Hook {
	switch t {
	case activate:
		return component.HookActivated
	case deactivate:
		return component.HookDeactivated
	default:
		return component.HookReset
	}
}

type request struct {
	t    transition
	done chan error
}

// attachment is the per-component record of one context.
type attachment struct {
	obj     *component.RTObject
	handle  component.Handle
	owned   bool
	state   component.State
	pending *request
	removed bool
}

// Context is an execution context: one scheduler goroutine driving the
// attached components either periodically or on external ticks. Transition
// requests may come from any goroutine; while the context runs they are
// applied by the scheduler between rounds.
type Context struct {
	id      string
	kind    Kind
	cfg     Config
	logger  *slog.Logger
	metrics *metric.Metrics

	mu          sync.Mutex
	comps       []*attachment
	running     bool
	rate        float64
	rateChanged bool
	started     uint64
	completed   uint64
	roundDone   chan struct{}
	done        chan struct{}
	cancel      context.CancelFunc

	// execMu serializes rounds with transitions applied outside the scheduler.
	execMu sync.Mutex
	latch  *notify.Latch
}

// Option configures a Context.
type Option func(*Context)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(c *Context) {
		c.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records rounds, transitions and hook failures in registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Context) {
		if registry != nil {
			c.metrics = registry.CoreMetrics()
		}
	}
}

// New creates a stopped context.
func New(id string, kind Kind, opts ...Option) (*Context, error) {
	if id == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty id", errors.ErrBadParameter), "ExecutionContext", "New", "id validation")
	}
	if kind != Periodic && kind != ExternalTrigger {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: kind %d", errors.ErrBadParameter, kind), "ExecutionContext", "New", "kind validation")
	}

	c := &Context{
		id:        id,
		kind:      kind,
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
		roundDone: make(chan struct{}),
		latch:     notify.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "ExecutionContext", "New", "config validation")
	}
	c.rate = c.cfg.Rate
	c.logger = c.logger.With("ec", id, "kind", kind.String())
	return c, nil
}

// ID returns the context id.
func (c *Context) ID() string { return c.id }

// Kind returns the scheduling discipline.
func (c *Context) Kind() Kind { return c.kind }

// Rate returns the current rate in Hz.
func (c *Context) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// IsRunning reports whether the scheduler is running.
func (c *Context) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Rounds returns the number of completed rounds.
func (c *Context) Rounds() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Profile describes a context for the admin surface.
type Profile struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Rate         float64  `json:"rate,omitempty"`
	Running      bool     `json:"running"`
	Owner        string   `json:"owner,omitempty"`
	Participants []string `json:"participants"`
	Rounds       uint64   `json:"rounds"`
}

// Profile returns a snapshot of the context.
func (c *Context) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := Profile{
		ID:           c.id,
		Kind:         c.kind.String(),
		Running:      c.running,
		Participants: []string{},
		Rounds:       c.completed,
	}
	if c.kind == Periodic {
		p.Rate = c.rate
	}
	for _, a := range c.comps {
		if a.owned {
			p.Owner = a.obj.Name()
		} else {
			p.Participants = append(p.Participants, a.obj.Name())
		}
	}
	return p
}

// Components returns the attached components in registration order.
func (c *Context) Components() []*component.RTObject {
	c.mu.Lock()
	defer c.mu.Unlock()
	objs := make([]*component.RTObject, 0, len(c.comps))
	for _, a := range c.comps {
		objs = append(objs, a.obj)
	}
	return objs
}

// BindComponent attaches obj as the owner of this context.
func (c *Context) BindComponent(obj *component.RTObject) (component.Handle, error) {
	return c.attach(obj, true)
}

// AddComponent attaches obj as a participant.
func (c *Context) AddComponent(obj *component.RTObject) (component.Handle, error) {
	return c.attach(obj, false)
}

func (c *Context) attach(obj *component.RTObject, owned bool) (component.Handle, error) {
	if obj == nil {
		return component.NoHandle, errors.WrapInvalid(
			fmt.Errorf("%w: nil component", errors.ErrBadParameter), "ExecutionContext", "AddComponent", "validate")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.findLocked(obj) != nil {
		return component.NoHandle, errors.WrapInvalid(
			fmt.Errorf("%w: component %s: %w", errors.ErrBadParameter, obj.Name(), errors.ErrAlreadyExists),
			"ExecutionContext", "AddComponent", "duplicate check")
	}
	if owned {
		for _, a := range c.comps {
			if a.owned {
				return component.NoHandle, errors.WrapInvalid(
					fmt.Errorf("%w: context %s is owned by %s", errors.ErrPreconditionNotMet, c.id, a.obj.Name()),
					"ExecutionContext", "BindComponent", "owner check")
			}
		}
	}

	h, err := obj.AttachContext(c, owned)
	if err != nil {
		return component.NoHandle, err
	}
	a := &attachment{obj: obj, handle: h, owned: owned, state: component.StateInactive}
	c.comps = append(c.comps, a)
	c.recordState(a, a.state)
	c.logger.Info("component attached", "component", obj.Name(), "handle", int(h), "owned", owned)
	return h, nil
}

// RemoveComponent detaches obj. Active components must be deactivated first.
// A transition still pending for obj is cancelled.
func (c *Context) RemoveComponent(obj *component.RTObject) error {
	c.mu.Lock()
	a := c.findLocked(obj)
	if a == nil {
		c.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("%w: component %s is not attached", errors.ErrBadParameter, obj.Name()),
			"ExecutionContext", "RemoveComponent", "lookup")
	}
	if a.state == component.StateActive {
		c.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("%w: component %s is active", errors.ErrPreconditionNotMet, obj.Name()),
			"ExecutionContext", "RemoveComponent", "state check")
	}
	if a.pending != nil {
		a.pending.done <- cancelled(a.pending.t)
		a.pending = nil
	}
	a.removed = true
	for i, other := range c.comps {
		if other == a {
			c.comps = append(c.comps[:i:i], c.comps[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.logger.Info("component detached", "component", obj.Name())
	return obj.DetachContext(c)
}

// ComponentState returns the state of obj in this context. Components that
// are not attached report their own lifetime state.
func (c *Context) ComponentState(obj *component.RTObject) component.State {
	c.mu.Lock()
	a := c.findLocked(obj)
	var s component.State
	if a != nil {
		s = a.state
	}
	c.mu.Unlock()

	if a != nil {
		return s
	}
	if obj.IsAlive() {
		return component.StateInactive
	}
	return obj.State()
}

// ActivateComponent requests Inactive to Active. A component that is already
// Active is rejected with ErrPreconditionNotMet and OnActivated is not called.
func (c *Context) ActivateComponent(obj *component.RTObject) error {
	return c.request(obj, activate)
}

// DeactivateComponent requests Active to Inactive.
func (c *Context) DeactivateComponent(obj *component.RTObject) error {
	return c.request(obj, deactivate)
}

// ResetComponent requests Error to Inactive. The component stays in Error
// when OnReset fails.
func (c *Context) ResetComponent(obj *component.RTObject) error {
	return c.request(obj, reset)
}

func (c *Context) request(obj *component.RTObject, t transition) error {
	if obj == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nil component", errors.ErrBadParameter), "ExecutionContext", t.String(), "validate")
	}

	c.mu.Lock()
	a := c.findLocked(obj)
	if err := c.checkLocked(a, obj, t); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.running {
		c.mu.Unlock()
		return c.applyInline(obj, t)
	}

	req := &request{t: t, done: make(chan error, 1)}
	a.pending = req
	c.mu.Unlock()
	c.latch.Wake()

	if !c.cfg.SyncTransition {
		return nil
	}

	timer := time.NewTimer(c.cfg.TransitionTimeout)
	defer timer.Stop()
	select {
	case err := <-req.done:
		return err
	case <-timer.C:
		return errors.WrapTransient(
			fmt.Errorf("%w: %s of %s not applied within %v", errors.ErrTimeout, t, obj.Name(), c.cfg.TransitionTimeout),
			"ExecutionContext", t.String(), "wait for transition")
	}
}

func (c *Context) checkLocked(a *attachment, obj *component.RTObject, t transition) error {
	if a == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: component %s is not attached to %s", errors.ErrBadParameter, obj.Name(), c.id),
			"ExecutionContext", t.String(), "lookup")
	}
	if a.pending != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s already pending for %s", errors.ErrPreconditionNotMet, a.pending.t, obj.Name()),
			"ExecutionContext", t.String(), "pending check")
	}
	if a.state != t.from() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s is %s", errors.ErrPreconditionNotMet, obj.Name(), a.state),
			"ExecutionContext", t.String(), "state check")
	}
	return nil
}

// applyInline applies a transition on the caller's goroutine while the
// scheduler is stopped.
func (c *Context) applyInline(obj *component.RTObject, t transition) error {
	c.execMu.Lock()
	defer c.execMu.Unlock()

	c.mu.Lock()
	a := c.findLocked(obj)
	if err := c.checkLocked(a, obj, t); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	return c.apply(context.Background(), a, t)
}

// Start launches the scheduler goroutine. OnStartup runs for every attached
// component before the first round.
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrPreconditionNotMet, errors.ErrAlreadyStarted),
			"ExecutionContext", "Start", "state check")
	}
	if c.done != nil {
		select {
		case <-c.done:
		default:
			return errors.WrapTransient(
				fmt.Errorf("%w: previous scheduler has not exited", errors.ErrPreconditionNotMet),
				"ExecutionContext", "Start", "state check")
		}
	}

	c.latch.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	c.running = true
	c.done = make(chan struct{})
	c.cancel = cancel
	go c.run(ctx, c.done)

	c.logger.Info("execution context started", "rate", c.rate)
	return nil
}

// Stop wakes the scheduler and waits up to timeout for it to exit; zero uses
// the configured stop timeout. Pending transitions are discarded and their
// requesters receive ErrPreconditionNotMet. Stopping a stopped context is a
// no-op.
func (c *Context) Stop(timeout time.Duration) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	done, cancel := c.done, c.cancel
	c.mu.Unlock()

	c.latch.Stop()

	if timeout <= 0 {
		timeout = c.cfg.StopTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		cancel()
		c.logger.Info("execution context stopped")
		return nil
	case <-timer.C:
		cancel()
		c.logger.Warn("scheduler did not exit in time, detaching", "timeout", timeout)
		return errors.WrapTransient(errors.ErrStopTimeout, "ExecutionContext", "Stop", "wait for scheduler")
	}
}

// Tick requests one round of an external-trigger context. Ticks arriving
// before the scheduler wakes coalesce into a single round.
func (c *Context) Tick() error {
	if c.kind != ExternalTrigger {
		return errors.WrapInvalid(errors.ErrUnsupported, "ExecutionContext", "Tick", "kind check")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return errors.WrapInvalid(errors.ErrPreconditionNotMet, "ExecutionContext", "Tick", "state check")
	}
	c.latch.Notify()
	return nil
}

// TickWait ticks and blocks until a round that started after the call has
// completed.
func (c *Context) TickWait(ctx context.Context) error {
	if c.kind != ExternalTrigger {
		return errors.WrapInvalid(errors.ErrUnsupported, "ExecutionContext", "TickWait", "kind check")
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrPreconditionNotMet, "ExecutionContext", "TickWait", "state check")
	}
	target := c.started + 1
	done := c.done
	c.latch.Notify()
	c.mu.Unlock()

	for stopped := false; ; {
		c.mu.Lock()
		if c.completed >= target {
			c.mu.Unlock()
			return nil
		}
		roundDone := c.roundDone
		c.mu.Unlock()

		if stopped {
			return errors.WrapInvalid(
				fmt.Errorf("%w: context stopped before the round ran", errors.ErrPreconditionNotMet),
				"ExecutionContext", "TickWait", "wait for round")
		}
		select {
		case <-roundDone:
		case <-done:
			stopped = true
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "ExecutionContext", "TickWait", "wait for round")
		}
	}
}

// SetRate changes the rate of a periodic context. A running scheduler applies
// it from its next sleep and calls OnRateChanged on its own goroutine.
func (c *Context) SetRate(hz float64) error {
	if c.kind != Periodic {
		return errors.WrapInvalid(errors.ErrUnsupported, "ExecutionContext", "SetRate", "kind check")
	}
	if err := validateRate(hz); err != nil {
		return err
	}

	c.mu.Lock()
	c.rate = hz
	c.rateChanged = true
	running := c.running
	c.mu.Unlock()

	if running {
		c.latch.Wake()
		return nil
	}

	c.execMu.Lock()
	defer c.execMu.Unlock()
	c.applyRateChange(context.Background())
	return nil
}

func (c *Context) findLocked(obj *component.RTObject) *attachment {
	for _, a := range c.comps {
		if a.obj == obj {
			return a
		}
	}
	return nil
}

func cancelled(t transition) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s discarded", errors.ErrPreconditionNotMet, t),
		"ExecutionContext", t.String(), "pending transition")
}
