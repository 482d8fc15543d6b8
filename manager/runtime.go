package manager

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/execution"
	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/naming"
	"github.com/c360/rtkit/port"
)

// DefaultShutdownTimeout bounds each teardown step when Shutdown gets zero.
const DefaultShutdownTimeout = 5 * time.Second

// Binder publishes names without blocking the caller. naming.Binder
// implements it.
type Binder interface {
	Bind(name string, entry naming.Entry) error
	Unbind(name string) error
}

type objectKind int

const (
	kindContext objectKind = iota
	kindComponent
)

type created struct {
	kind objectKind
	name string
}

// Runtime is one explicitly constructed runtime: the factory registries, the
// port directory and every component and execution context created through
// it. There is no package-level state; tests build as many as they need.
type Runtime struct {
	node       string
	logger     *slog.Logger
	metricsReg *metric.MetricsRegistry
	network    *port.Network
	components *component.Registry
	contexts   *execution.Registry
	binder     Binder
	logPub     component.LogPublisher
	logSubject string

	mu       sync.RWMutex
	ecs      map[string]*execution.Context
	order    []created
	shutdown bool
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics exports runtime metrics to registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(r *Runtime) {
		r.metricsReg = registry
	}
}

// WithNetwork uses an existing port directory, e.g. one with extra transports.
func WithNetwork(n *port.Network) Option {
	return func(r *Runtime) {
		r.network = n
	}
}

// WithComponentRegistry uses an existing component factory registry.
func WithComponentRegistry(reg *component.Registry) Option {
	return func(r *Runtime) {
		r.components = reg
	}
}

// WithContextRegistry uses an existing execution context factory registry.
func WithContextRegistry(reg *execution.Registry) Option {
	return func(r *Runtime) {
		r.contexts = reg
	}
}

// WithBinder publishes components and contexts through b.
func WithBinder(b Binder) Option {
	return func(r *Runtime) {
		r.binder = b
	}
}

// WithNode sets the node name recorded in naming entries.
func WithNode(node string) Option {
	return func(r *Runtime) {
		r.node = node
	}
}

// WithLogPublisher forwards component log entries to pub under subject.
func WithLogPublisher(pub component.LogPublisher, subject string) Option {
	return func(r *Runtime) {
		r.logPub = pub
		r.logSubject = subject
	}
}

// New creates an empty runtime. Missing registries and the network are created
// with defaults.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		logger: slog.Default(),
		ecs:    make(map[string]*execution.Context),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.components == nil {
		r.components = component.NewRegistry()
	}
	if r.contexts == nil {
		r.contexts = execution.NewRegistry()
	}
	if r.network == nil {
		r.network = port.NewNetwork(port.WithLogger(r.logger), port.WithMetrics(r.metricsReg))
	}
	r.logger = r.logger.With("component", "runtime")
	return r
}

// Network returns the port directory.
func (r *Runtime) Network() *port.Network { return r.network }

// ComponentRegistry returns the component factory and instance registry.
func (r *Runtime) ComponentRegistry() *component.Registry { return r.components }

// ContextRegistry returns the execution context factory registry.
func (r *Runtime) ContextRegistry() *execution.Registry { return r.contexts }

// Metrics returns the metrics registry, possibly nil.
func (r *Runtime) Metrics() *metric.MetricsRegistry { return r.metricsReg }

// RegisterComponentType registers a component factory.
func (r *Runtime) RegisterComponentType(reg *component.Registration) error {
	return r.components.RegisterFactory(reg)
}

// RegisterContextType registers an execution context factory.
func (r *Runtime) RegisterContextType(name string, f execution.Factory) error {
	return r.contexts.Register(name, f)
}

// Dependencies returns the services handed to component factories.
func (r *Runtime) Dependencies() component.Dependencies {
	return component.Dependencies{
		Network:         r.network,
		MetricsRegistry: r.metricsReg,
		Logger:          r.logger,
		LogPublisher:    r.logPub,
		LogSubject:      r.logSubject,
	}
}

// CreateContext creates an execution context from the factory registered as
// typeName. The context is not started; owning components start it during
// Initialize, and Start starts the rest.
func (r *Runtime) CreateContext(typeName, id string, props config.Properties) (*execution.Context, error) {
	if err := r.checkOpen(); err != nil {
		return nil, errors.WrapInvalid(err, "Runtime", "CreateContext", "state check")
	}

	r.mu.RLock()
	_, exists := r.ecs[id]
	r.mu.RUnlock()
	if exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: execution context %q: %w", errors.ErrBadParameter, id, errors.ErrAlreadyExists),
			"Runtime", "CreateContext", "duplicate check")
	}

	ec, err := r.contexts.Create(typeName, id, props,
		execution.WithLogger(r.logger), execution.WithMetrics(r.metricsReg))
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "CreateContext", "create context")
	}

	r.mu.Lock()
	if _, exists := r.ecs[id]; exists {
		r.mu.Unlock()
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: execution context %q: %w", errors.ErrBadParameter, id, errors.ErrAlreadyExists),
			"Runtime", "CreateContext", "duplicate check")
	}
	r.ecs[id] = ec
	r.order = append(r.order, created{kind: kindContext, name: id})
	r.mu.Unlock()

	r.bind(naming.ContextName(id), naming.Entry{
		Kind:   naming.KindContext,
		Target: id,
		Props:  props.Clone(),
	})
	r.logger.Info("execution context created", "ec", id, "kind", ec.Kind().String())
	return ec, nil
}

// Context returns the execution context with the given id.
func (r *Runtime) Context(id string) (*execution.Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ec, ok := r.ecs[id]
	return ec, ok
}

// Contexts returns every execution context sorted by id.
func (r *Runtime) Contexts() []*execution.Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*execution.Context, 0, len(r.ecs))
	for _, ec := range r.ecs {
		out = append(out, ec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// CreateComponent creates and initializes a component of typeName. Pass
// component.WithOwnedContext to give it an owned execution context; the
// context is bound and started during initialization. A component whose
// initialization fails is discarded.
func (r *Runtime) CreateComponent(
	ctx context.Context, typeName, instance string, props config.Properties, opts ...component.Option,
) (*component.RTObject, error) {
	if err := r.checkOpen(); err != nil {
		return nil, errors.WrapInvalid(err, "Runtime", "CreateComponent", "state check")
	}

	obj, err := r.components.CreateComponent(typeName, instance, props, r.Dependencies(), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Runtime", "CreateComponent", "create component")
	}
	if err := obj.Initialize(ctx); err != nil {
		r.components.UnregisterInstance(instance)
		if obj.IsAlive() {
			// Initialized but the owned context could not be bound or started.
			_ = obj.Exit(ctx, DefaultShutdownTimeout)
		}
		return nil, errors.Wrap(err, "Runtime", "CreateComponent", "initialize")
	}

	r.mu.Lock()
	r.order = append(r.order, created{kind: kindComponent, name: instance})
	r.mu.Unlock()

	r.bind(naming.ComponentName(instance), naming.Entry{
		Kind:   naming.KindComponent,
		Target: instance,
		Ports:  obj.PortNames(),
		Props:  obj.Properties(),
	})
	r.logger.Info("component created", "instance", instance, "type", typeName)
	return obj, nil
}

// Component returns the component instance named name.
func (r *Runtime) Component(name string) (*component.RTObject, bool) {
	obj := r.components.Component(name)
	return obj, obj != nil
}

// Components returns every component instance sorted by name.
func (r *Runtime) Components() []*component.RTObject {
	instances := r.components.ListComponents()
	out := make([]*component.RTObject, 0, len(instances))
	for _, obj := range instances {
		out = append(out, obj)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Participate attaches a component to an execution context as a participant.
func (r *Runtime) Participate(instance, ecID string) (component.Handle, error) {
	obj, ec, err := r.lookup(instance, ecID)
	if err != nil {
		return component.NoHandle, errors.Wrap(err, "Runtime", "Participate", "lookup")
	}
	h, err := ec.AddComponent(obj)
	if err != nil {
		return component.NoHandle, errors.Wrap(err, "Runtime", "Participate", "add component")
	}
	return h, nil
}

// DestroyComponent exits the component, forgets it and withdraws its name.
func (r *Runtime) DestroyComponent(ctx context.Context, instance string, timeout time.Duration) error {
	obj, ok := r.Component(instance)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("component %q: %w", instance, errors.ErrNotFound),
			"Runtime", "DestroyComponent", "lookup")
	}
	err := obj.Exit(ctx, timeout)
	r.components.UnregisterInstance(instance)

	r.mu.Lock()
	for i, c := range r.order {
		if c.kind == kindComponent && c.name == instance {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.unbind(naming.ComponentName(instance))
	if err != nil {
		return errors.Wrap(err, "Runtime", "DestroyComponent", "exit")
	}
	return nil
}

// Connect connects two ports. The returned profile carries the assigned id.
func (r *Runtime) Connect(ctx context.Context, profile port.ConnectorProfile) (port.ConnectorProfile, error) {
	if err := r.checkOpen(); err != nil {
		return port.ConnectorProfile{}, errors.WrapInvalid(err, "Runtime", "Connect", "state check")
	}
	return r.network.Connect(ctx, profile)
}

// Disconnect removes the connector with the given id. Unknown ids are not an
// error.
func (r *Runtime) Disconnect(id string) error {
	return r.network.Disconnect(id)
}

// DisconnectAll removes every connector.
func (r *Runtime) DisconnectAll() {
	r.network.DisconnectAll()
}

// Start starts every execution context that is not already running.
func (r *Runtime) Start() error {
	var errs []error
	for _, ec := range r.Contexts() {
		if ec.IsRunning() {
			continue
		}
		if err := ec.Start(); err != nil && !stderrors.Is(err, errors.ErrAlreadyStarted) {
			errs = append(errs, fmt.Errorf("%s: %w", ec.ID(), err))
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(err, "Runtime", "Start", "start contexts")
	}
	return nil
}

// Shutdown tears the runtime down in reverse creation order: connectors
// first, then each component exits (stopping its owned context) and each
// remaining context stops. Shutdown is idempotent.
func (r *Runtime) Shutdown(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	r.mu.Lock()
	if r.shutdown {
		r.mu.Unlock()
		return nil
	}
	r.shutdown = true
	order := make([]created, len(r.order))
	copy(order, r.order)
	r.mu.Unlock()

	r.logger.Info("runtime shutting down", "objects", len(order))
	r.network.DisconnectAll()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		c := order[i]
		switch c.kind {
		case kindComponent:
			obj, ok := r.Component(c.name)
			if !ok {
				continue
			}
			if obj.IsAlive() {
				if err := obj.Exit(ctx, timeout); err != nil {
					errs = append(errs, fmt.Errorf("component %s: %w", c.name, err))
				}
			}
			r.components.UnregisterInstance(c.name)
			r.unbind(naming.ComponentName(c.name))
		case kindContext:
			ec, ok := r.Context(c.name)
			if !ok {
				continue
			}
			if err := ec.Stop(timeout); err != nil {
				errs = append(errs, fmt.Errorf("execution context %s: %w", c.name, err))
			}
			r.unbind(naming.ContextName(c.name))
		}
	}

	if err := stderrors.Join(errs...); err != nil {
		r.logger.Warn("runtime shutdown finished with errors", "error", err)
		return errors.Wrap(err, "Runtime", "Shutdown", "teardown")
	}
	r.logger.Info("runtime stopped")
	return nil
}

func (r *Runtime) checkOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.shutdown {
		return fmt.Errorf("%w: runtime is shut down", errors.ErrPreconditionNotMet)
	}
	return nil
}

func (r *Runtime) lookup(instance, ecID string) (*component.RTObject, *execution.Context, error) {
	obj, ok := r.Component(instance)
	if !ok {
		return nil, nil, errors.WrapInvalid(fmt.Errorf("component %q: %w", instance, errors.ErrNotFound),
			"Runtime", "lookup", "find component")
	}
	ec, ok := r.Context(ecID)
	if !ok {
		return nil, nil, errors.WrapInvalid(fmt.Errorf("execution context %q: %w", ecID, errors.ErrNotFound),
			"Runtime", "lookup", "find context")
	}
	return obj, ec, nil
}

func (r *Runtime) bind(name string, entry naming.Entry) {
	if r.binder == nil {
		return
	}
	entry.Node = r.node
	if err := r.binder.Bind(name, entry); err != nil {
		r.logger.Warn("naming bind not queued", "name", name, "error", err)
	}
}

func (r *Runtime) unbind(name string) {
	if r.binder == nil {
		return
	}
	if err := r.binder.Unbind(name); err != nil {
		r.logger.Warn("naming unbind not queued", "name", name, "error", err)
	}
}
