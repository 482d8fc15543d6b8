package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/port"
)

// DefaultExitTimeout bounds how long Exit waits for each owned context to stop.
const DefaultExitTimeout = 2 * time.Second

type aliveness int

const (
	created aliveness = iota
	alive
	exiting
)

// RTObject is one component instance: the user logic, its ports and the
// execution contexts it owns or participates in.
type RTObject struct {
	name     string
	typeName string
	logic    any
	caps     Capability
	props    config.Properties

	net    *port.Network
	logger *slog.Logger
	log    *Logger
	logPub LogPublisher
	logSub string

	mu           sync.RWMutex
	life         aliveness
	contexts     map[Handle]ExecutionContext
	pendingOwned []ExecutionContext
	outPorts     []*port.OutPort
	inPorts      []*port.InPort
	mode         string
	pendingMode  *string
}

// Option configures an RTObject.
type Option func(*RTObject)

// WithNetwork sets the port directory NewOutPort and NewInPort register in.
func WithNetwork(n *port.Network) Option {
	return func(o *RTObject) {
		o.net = n
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *RTObject) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLogPublisher publishes the component's log entries under prefix.
func WithLogPublisher(pub LogPublisher, prefix string) Option {
	return func(o *RTObject) {
		o.logPub = pub
		o.logSub = prefix
	}
}

// WithProperties sets the instance properties.
func WithProperties(props config.Properties) Option {
	return func(o *RTObject) {
		o.props = props.Clone()
	}
}

// WithTypeName records the factory type the object was created from.
func WithTypeName(name string) Option {
	return func(o *RTObject) {
		o.typeName = name
	}
}

// WithOwnedContext makes ec the owned context. Initialize binds and starts it.
func WithOwnedContext(ec ExecutionContext) Option {
	return func(o *RTObject) {
		if ec != nil {
			o.pendingOwned = append(o.pendingOwned, ec)
		}
	}
}

// NewRTObject wraps logic into a component named name. logic implements any
// subset of the hook interfaces.
func NewRTObject(name string, logic any, opts ...Option) (*RTObject, error) {
	if err := ValidateName(name); err != nil {
		return nil, errors.WrapInvalid(err, "RTObject", "New", "name validation")
	}
	if logic == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nil component logic", errors.ErrBadParameter), "RTObject", "New", "logic validation")
	}

	o := &RTObject{
		name:     name,
		logic:    logic,
		caps:     CapabilitiesOf(logic),
		props:    config.Properties{},
		logger:   slog.Default(),
		contexts: make(map[Handle]ExecutionContext),
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.pendingOwned) > 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: a component has at most one owned context", errors.ErrBadParameter),
			"RTObject", "New", "owned context validation")
	}
	o.log = NewLogger(name, o.logPub, o.logSub, o.logger)
	o.logger = o.log.Slog()
	return o, nil
}

// Name returns the instance name.
func (o *RTObject) Name() string { return o.name }

// TypeName returns the factory type, empty for objects built directly.
func (o *RTObject) TypeName() string { return o.typeName }

// Logic returns the user logic.
func (o *RTObject) Logic() any { return o.logic }

// Capabilities returns the capability set derived at construction.
func (o *RTObject) Capabilities() Capability { return o.caps }

// Properties returns a copy of the instance properties.
func (o *RTObject) Properties() config.Properties { return o.props.Clone() }

// Logger returns the component logger.
func (o *RTObject) Logger() *Logger { return o.log }

// IsAlive reports whether the object is initialized and not exiting.
func (o *RTObject) IsAlive() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.life == alive
}

// State returns the state in the owned context when there is one, otherwise
// Created, Inactive or Exiting depending on the object's lifetime.
func (o *RTObject) State() State {
	o.mu.RLock()
	life := o.life
	owned, hasOwned := o.contexts[0]
	o.mu.RUnlock()

	switch life {
	case created:
		return StateCreated
	case exiting:
		return StateExiting
	}
	if hasOwned {
		return owned.ComponentState(o)
	}
	return StateInactive
}

// NewOutPort registers an output port named <component>.<name>.
func (o *RTObject) NewOutPort(name string, props config.Properties) (*port.OutPort, error) {
	if o.net == nil {
		return nil, errors.WrapInvalid(errors.ErrPreconditionNotMet, "RTObject", "NewOutPort", "network lookup")
	}
	p, err := o.net.NewOutPort(o.portName(name), props)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.outPorts = append(o.outPorts, p)
	o.mu.Unlock()
	return p, nil
}

// NewInPort registers an input port named <component>.<name>.
func (o *RTObject) NewInPort(name string, props config.Properties) (*port.InPort, error) {
	if o.net == nil {
		return nil, errors.WrapInvalid(errors.ErrPreconditionNotMet, "RTObject", "NewInPort", "network lookup")
	}
	p, err := o.net.NewInPort(o.portName(name), props)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.inPorts = append(o.inPorts, p)
	o.mu.Unlock()
	return p, nil
}

func (o *RTObject) portName(name string) string {
	return o.name + "." + name
}

// PortNames returns the full names of the object's ports, sorted.
func (o *RTObject) PortNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.outPorts)+len(o.inPorts))
	for _, p := range o.outPorts {
		names = append(names, p.Name())
	}
	for _, p := range o.inPorts {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}

// Initialize runs OnInitialize, then binds and starts the owned context.
// Any failure leaves the object Created.
func (o *RTObject) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.life != created {
		o.mu.Unlock()
		return errors.WrapInvalid(errors.ErrPreconditionNotMet, "RTObject", "Initialize", "state check")
	}
	o.mu.Unlock()

	err := Invoke(HookInitialize, func() error {
		if h, ok := o.logic.(Initializer); ok {
			return h.OnInitialize(ctx, o)
		}
		return nil
	})
	if err != nil {
		o.log.Error("initialize failed", err)
		o.removePorts()
		return errors.Wrap(err, "RTObject", "Initialize", HookInitialize.String())
	}

	o.mu.Lock()
	o.life = alive
	pending := o.pendingOwned
	o.pendingOwned = nil
	o.mu.Unlock()

	for i, ec := range pending {
		if _, err := ec.BindComponent(o); err != nil {
			o.rollbackInitialize(pending, pending[:i+1])
			return errors.Wrap(err, "RTObject", "Initialize", "bind owned context")
		}
		if err := ec.Start(); err != nil && !stderrors.Is(err, errors.ErrAlreadyStarted) {
			o.rollbackInitialize(pending, pending[:i+1])
			return errors.Wrap(err, "RTObject", "Initialize", "start owned context")
		}
	}
	o.logger.Info("component initialized", "capabilities", o.caps.String())
	return nil
}

// rollbackInitialize returns the object to Created after its owned context
// could not be bound or started, so Initialize can be called again. touched
// holds the contexts a bind was attempted on, including the failing one.
func (o *RTObject) rollbackInitialize(pending, touched []ExecutionContext) {
	for _, ec := range touched {
		if err := ec.RemoveComponent(o); err != nil {
			o.logger.Debug("owned context not attached", "context", ec.ID(), "error", err)
			_ = o.DetachContext(ec)
		}
	}
	o.removePorts()

	o.mu.Lock()
	o.life = created
	o.pendingOwned = pending
	o.mu.Unlock()
}

// AttachContext records ec under a new handle. Execution contexts call it
// from BindComponent (owned) and AddComponent (participant).
func (o *RTObject) AttachContext(ec ExecutionContext, owned bool) (Handle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.life != alive {
		return NoHandle, errors.WrapInvalid(
			fmt.Errorf("%w: component %s is %s", errors.ErrPreconditionNotMet, o.name, o.lifeStateLocked()),
			"RTObject", "AttachContext", "state check")
	}
	for h, existing := range o.contexts {
		if existing == ec {
			return h, errors.WrapInvalid(
				fmt.Errorf("%w: context %s: %w", errors.ErrBadParameter, ec.ID(), errors.ErrAlreadyExists),
				"RTObject", "AttachContext", "duplicate check")
		}
	}

	h := Handle(0)
	if owned {
		if _, taken := o.contexts[0]; taken {
			return NoHandle, errors.WrapInvalid(
				fmt.Errorf("%w: component %s already has an owner", errors.ErrPreconditionNotMet, o.name),
				"RTObject", "AttachContext", "owner check")
		}
	} else {
		h = ParticipantOffset
		for {
			if _, taken := o.contexts[h]; !taken {
				break
			}
			h++
		}
	}
	o.contexts[h] = ec
	return h, nil
}

// DetachContext forgets ec.
func (o *RTObject) DetachContext(ec ExecutionContext) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for h, existing := range o.contexts {
		if existing == ec {
			delete(o.contexts, h)
			return nil
		}
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: context %s is not attached", errors.ErrBadParameter, ec.ID()),
		"RTObject", "DetachContext", "context lookup")
}

// ContextHandle returns the handle of ec, or NoHandle.
func (o *RTObject) ContextHandle(ec ExecutionContext) Handle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for h, existing := range o.contexts {
		if existing == ec {
			return h
		}
	}
	return NoHandle
}

// Context returns the context registered under h.
func (o *RTObject) Context(h Handle) (ExecutionContext, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ec, ok := o.contexts[h]
	return ec, ok
}

// OwnedContext returns the owned context or nil.
func (o *RTObject) OwnedContext() ExecutionContext {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.contexts[0]
}

// Handles returns every attached handle in ascending order.
func (o *RTObject) Handles() []Handle {
	o.mu.RLock()
	defer o.mu.RUnlock()
	hs := make([]Handle, 0, len(o.contexts))
	for h := range o.contexts {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Invoke runs hook on the logic with panics converted to errors. Execution
// contexts call it from their scheduling goroutine. OnInitialize is not
// reachable through Invoke.
func (o *RTObject) Invoke(ctx context.Context, hook Hook, ec Handle) error {
	if hook == HookInitialize {
		return errors.WrapInvalid(errors.ErrUnsupported, "RTObject", "Invoke", "initialize through Invoke")
	}
	mode := o.Mode()
	if hook == HookModeChanged {
		o.mu.RLock()
		if o.pendingMode != nil {
			mode = *o.pendingMode
		}
		o.mu.RUnlock()
	}
	return Invoke(hook, func() error {
		return call(ctx, o.logic, hook, ec, mode)
	})
}

// Mode returns the current mode of a MultiMode component.
func (o *RTObject) Mode() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.mode
}

// ChangeMode requests a mode change. While the owned context runs, the change
// is applied by its scheduler before the next round; otherwise it is applied
// inline.
func (o *RTObject) ChangeMode(ctx context.Context, mode string) error {
	if !o.caps.Has(MultiMode) {
		return errors.WrapInvalid(errors.ErrUnsupported, "RTObject", "ChangeMode", "capability check")
	}
	o.mu.Lock()
	if o.life != alive {
		o.mu.Unlock()
		return errors.WrapInvalid(errors.ErrPreconditionNotMet, "RTObject", "ChangeMode", "state check")
	}
	o.pendingMode = &mode
	owned := o.contexts[0]
	o.mu.Unlock()

	if owned != nil && owned.IsRunning() {
		return nil
	}
	h := Handle(0)
	if owned == nil {
		h = NoHandle
	}
	return o.ApplyPendingMode(ctx, h)
}

// ApplyPendingMode runs OnModeChanged for a pending mode change, if any, and
// commits the mode when the hook succeeds.
func (o *RTObject) ApplyPendingMode(ctx context.Context, ec Handle) error {
	o.mu.RLock()
	pending := o.pendingMode
	o.mu.RUnlock()
	if pending == nil {
		return nil
	}

	err := o.Invoke(ctx, HookModeChanged, ec)

	o.mu.Lock()
	if o.pendingMode == pending {
		o.pendingMode = nil
	}
	if err == nil {
		o.mode = *pending
	}
	o.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "RTObject", "ApplyPendingMode", HookModeChanged.String())
	}
	o.logger.Info("mode changed", "mode", *pending)
	return nil
}

// Exit deactivates the object everywhere, stops its owned context, detaches
// from participating contexts, disconnects its ports and runs OnFinalize.
// The object ends in Exiting even when a step fails; the failures are joined.
func (o *RTObject) Exit(ctx context.Context, timeout time.Duration) error {
	o.mu.Lock()
	if o.life != alive {
		state := o.lifeStateLocked()
		o.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("%w: component %s is %s", errors.ErrPreconditionNotMet, o.name, state),
			"RTObject", "Exit", "state check")
	}
	o.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultExitTimeout
	}

	var errs []error
	for _, h := range o.Handles() {
		ec, ok := o.Context(h)
		if !ok {
			continue
		}
		if ec.ComponentState(o) == StateActive {
			if err := ec.DeactivateComponent(o); err != nil {
				errs = append(errs, err)
			}
		}
		if h.IsOwned() && ec.IsRunning() {
			if err := ec.Stop(timeout); err != nil {
				errs = append(errs, err)
			}
		}
		if err := ec.RemoveComponent(o); err != nil {
			errs = append(errs, err)
			// A context that refused removal is still forgotten here.
			_ = o.DetachContext(ec)
		}
	}

	o.removePorts()

	o.mu.Lock()
	o.life = exiting
	o.mu.Unlock()

	if err := o.Invoke(ctx, HookFinalize, NoHandle); err != nil {
		o.log.Error("finalize failed", err)
		errs = append(errs, err)
	}
	o.logger.Info("component exited")

	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(err, "RTObject", "Exit", "teardown")
	}
	return nil
}

func (o *RTObject) removePorts() {
	o.mu.Lock()
	outs, ins := o.outPorts, o.inPorts
	o.outPorts, o.inPorts = nil, nil
	o.mu.Unlock()

	for _, p := range outs {
		p.DisconnectAll()
		if o.net != nil {
			o.net.RemovePort(p.Name())
		}
	}
	for _, p := range ins {
		p.DisconnectAll()
		if o.net != nil {
			o.net.RemovePort(p.Name())
		}
	}
}

func (o *RTObject) lifeStateLocked() State {
	switch o.life {
	case created:
		return StateCreated
	case exiting:
		return StateExiting
	default:
		return StateInactive
	}
}

// ContextInfo describes one attached context.
type ContextInfo struct {
	Handle Handle `json:"handle"`
	ID     string `json:"id"`
	Owned  bool   `json:"owned"`
	State  string `json:"state"`
}

// Info describes a component for the admin surface.
type Info struct {
	Name         string        `json:"name"`
	Type         string        `json:"type,omitempty"`
	State        string        `json:"state"`
	Capabilities string        `json:"capabilities"`
	Mode         string        `json:"mode,omitempty"`
	Ports        []string      `json:"ports"`
	Contexts     []ContextInfo `json:"contexts"`
}

// Describe returns a snapshot of the object.
func (o *RTObject) Describe() Info {
	info := Info{
		Name:         o.name,
		Type:         o.typeName,
		State:        o.State().String(),
		Capabilities: o.caps.String(),
		Mode:         o.Mode(),
		Ports:        o.PortNames(),
		Contexts:     []ContextInfo{},
	}
	for _, h := range o.Handles() {
		ec, ok := o.Context(h)
		if !ok {
			continue
		}
		info.Contexts = append(info.Contexts, ContextInfo{
			Handle: h,
			ID:     ec.ID(),
			Owned:  h.IsOwned(),
			State:  ec.ComponentState(o).String(),
		})
	}
	return info
}
