package naming

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/pkg/retry"
	"github.com/c360/rtkit/pkg/worker"
)

type opKind int

const (
	opBind opKind = iota
	opUnbind
)

func (k opKind) String() string {
	if k == opBind {
		return "bind"
	}
	return "unbind"
}

type op struct {
	kind  opKind
	name  string
	entry Entry
}

// Binder registers names with a Service in the background. Bind and Unbind
// only queue work; transient failures are retried, then logged, and never
// reach the caller. Invalid and fatal failures are logged without a retry.
type Binder struct {
	svc         Service
	bindRetry   retry.Config
	unbindRetry retry.Config
	logger      *slog.Logger
	metrics *metric.Metrics
	pool    *worker.Pool[op]

	mu    sync.Mutex
	bound map[string]struct{}
}

// BinderOption configures a Binder.
type BinderOption func(*binderConfig)

type binderConfig struct {
	workers     int
	queue       int
	bindRetry   retry.Config
	unbindRetry retry.Config
	logger      *slog.Logger
	registry    *metric.MetricsRegistry
}

// WithRetry replaces both retry policies.
func WithRetry(cfg retry.Config) BinderOption {
	return func(c *binderConfig) {
		c.bindRetry = cfg
		c.unbindRetry = cfg
	}
}

// WithUnbindRetry replaces the unbind policy only.
func WithUnbindRetry(cfg retry.Config) BinderOption {
	return func(c *binderConfig) { c.unbindRetry = cfg }
}

// WithBinderLogger sets the logger.
func WithBinderLogger(logger *slog.Logger) BinderOption {
	return func(c *binderConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBinderMetrics counts naming operations in registry.
func WithBinderMetrics(registry *metric.MetricsRegistry) BinderOption {
	return func(c *binderConfig) { c.registry = registry }
}

// WithWorkers sets the pool size and queue length.
func WithWorkers(workers, queue int) BinderOption {
	return func(c *binderConfig) {
		c.workers = workers
		c.queue = queue
	}
}

// NewBinder returns a stopped binder for svc.
func NewBinder(svc Service, opts ...BinderOption) *Binder {
	cfg := binderConfig{
		workers:     2,
		queue:       128,
		bindRetry:   retry.BindPolicy(),
		unbindRetry: retry.UnbindPolicy(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Binder{
		svc:         svc,
		bindRetry:   cfg.bindRetry,
		unbindRetry: cfg.unbindRetry,
		logger:      cfg.logger.With("component", "naming"),
		bound:       make(map[string]struct{}),
	}
	poolOpts := []worker.Option[op]{worker.WithLogger[op](b.logger)}
	if cfg.registry != nil {
		b.metrics = cfg.registry.CoreMetrics()
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[op](cfg.registry))
	}
	b.pool = worker.NewPool("naming", cfg.workers, cfg.queue, b.process, poolOpts...)
	return b
}

// Service returns the wrapped directory.
func (b *Binder) Service() Service { return b.svc }

// Start launches the workers.
func (b *Binder) Start(ctx context.Context) error {
	if err := b.pool.Start(ctx); err != nil {
		return errors.WrapInvalid(err, "Binder", "Start", "start pool")
	}
	return nil
}

// Stop drains queued operations for up to timeout.
func (b *Binder) Stop(timeout time.Duration) error {
	if err := b.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Binder", "Stop", "drain pool")
	}
	return nil
}

// Bind queues a registration. It fails only when the name is invalid or the
// queue cannot take more work.
func (b *Binder) Bind(name string, entry Entry) error {
	if err := ValidateName(name); err != nil {
		return errors.WrapInvalid(err, "Binder", "Bind", "validate name")
	}
	if entry.BoundAt.IsZero() {
		entry.BoundAt = time.Now().UTC()
	}
	return b.submit(op{kind: opBind, name: name, entry: entry})
}

// Unbind queues removal of a registration.
func (b *Binder) Unbind(name string) error {
	return b.submit(op{kind: opUnbind, name: name})
}

func (b *Binder) submit(o op) error {
	if err := b.pool.Submit(o); err != nil {
		b.logger.Warn("naming operation dropped", "op", o.kind.String(), "name", o.name, "error", err)
		if b.metrics != nil {
			b.metrics.RecordNaming(o.kind.String(), false)
		}
		return errors.WrapTransient(err, "Binder", o.kind.String(), "queue operation")
	}
	return nil
}

// Bound returns the names currently registered by this binder, sorted.
func (b *Binder) Bound() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.bound))
	for name := range b.bound {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns the queue counters.
func (b *Binder) Stats() worker.PoolStats { return b.pool.Stats() }

func (b *Binder) process(ctx context.Context, o op) error {
	var err error
	if o.kind == opBind {
		err = retry.Do(ctx, b.bindRetry, func() error { return b.svc.Bind(ctx, o.name, o.entry) })
	} else {
		err = retry.Do(ctx, b.unbindRetry, func() error { return b.svc.Unbind(ctx, o.name) })
	}

	if b.metrics != nil {
		b.metrics.RecordNaming(o.kind.String(), err == nil)
	}
	if err != nil {
		b.logger.Warn("naming operation failed", "op", o.kind.String(), "name", o.name, "error", err)
		return err
	}

	b.mu.Lock()
	if o.kind == opBind {
		b.bound[o.name] = struct{}{}
	} else {
		delete(b.bound, o.name)
	}
	b.mu.Unlock()
	b.logger.Debug("naming operation applied", "op", o.kind.String(), "name", o.name)
	return nil
}
