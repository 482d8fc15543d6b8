package publisher

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/pkg/buffer"
)

// base holds what every strategy shares: the source buffer, the consumer and
// the push policy.
type base[T any] struct {
	kind     Kind
	cfg      Config
	source   buffer.Buffer[T]
	consumer Consumer[T]
	opts     options
	logger   *slog.Logger
	metrics  *publisherMetrics

	// ctx is cancelled by Release so an in-flight push cannot outlive it.
	ctx    context.Context
	cancel context.CancelFunc

	pushMu   sync.Mutex // serialises pushes and guards skipSeen
	skipSeen int

	releaseOnce sync.Once
}

func newBase[T any](cfg Config, source buffer.Buffer[T], consumer Consumer[T], opts options) (*base[T], error) {
	b := &base[T]{
		kind:     cfg.Kind,
		cfg:      cfg,
		source:   source,
		consumer: consumer,
		opts:     opts,
		logger:   opts.logger.With("publisher", opts.name, "kind", cfg.Kind.String()),
	}

	if opts.metricsReg != nil {
		m, err := newPublisherMetrics(opts.metricsReg, opts.name)
		if err != nil {
			return nil, errors.WrapTransient(err, "publisher", "New", "metrics registration")
		}
		b.metrics = m
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	return b, nil
}

// Kind reports the strategy.
func (b *base[T]) Kind() Kind {
	return b.kind
}

// push sends buffered records to the consumer according to the push policy.
// An empty source is not a failure.
func (b *base[T]) push() error {
	b.pushMu.Lock()
	defer b.pushMu.Unlock()

	var err error
	switch b.cfg.Policy {
	case PolicyNew:
		err = b.pushLatest()
	case PolicyFIFO:
		err = b.pushOldest()
	case PolicyAll:
		err = b.pushAll()
	case PolicySkip:
		err = b.pushSkipping()
	}

	if err != nil {
		b.recordFailure(err)
		return err
	}
	return nil
}

func (b *base[T]) pushLatest() error {
	item, err := b.source.ReadLatest()
	if stderrors.Is(err, errors.ErrBufferEmpty) {
		return nil
	}
	if err != nil {
		return err
	}
	return b.send(item)
}

// pushOldest peeks first so a failed send leaves the record buffered.
func (b *base[T]) pushOldest() error {
	item, err := b.source.Peek()
	if stderrors.Is(err, errors.ErrBufferEmpty) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := b.send(item); err != nil {
		return err
	}
	_, _ = b.source.Read()
	return nil
}

func (b *base[T]) pushAll() error {
	for n := b.source.Readable(); n > 0; n-- {
		if err := b.pushOldest(); err != nil {
			return err
		}
	}
	return nil
}

func (b *base[T]) pushSkipping() error {
	stride := b.cfg.SkipCount + 1
	for _, item := range b.source.ReadBatch(b.source.Readable()) {
		send := b.skipSeen%stride == 0
		b.skipSeen++
		if !send {
			continue
		}
		if err := b.send(item); err != nil {
			return err
		}
	}
	return nil
}

func (b *base[T]) send(item T) error {
	err := b.consumer.Push(b.ctx, item)
	if err == nil && b.metrics != nil {
		b.metrics.recordPush(errors.PortOK)
	}
	return err
}

func (b *base[T]) recordFailure(err error) {
	status := errors.Status(err)
	if b.metrics != nil {
		b.metrics.recordPush(status)
	}
	b.logger.Debug("push failed", "status", status.String(), "error", err)
	if b.opts.onError != nil {
		b.opts.onError(err)
	}
}

func (b *base[T]) recordCoalesced() {
	if b.metrics != nil {
		b.metrics.coalesced.Inc()
	}
}

// close cancels in-flight pushes and drops metrics. Safe to call more than once.
func (b *base[T]) close() {
	b.cancel()
	if b.metrics != nil {
		b.metrics.unregister()
	}
}

// releaseWorker stops a worker goroutine and waits for it up to the release timeout.
func (b *base[T]) releaseWorker(stop func(), done <-chan struct{}) {
	b.releaseOnce.Do(func() {
		stop()
		b.cancel()

		timer := time.NewTimer(b.opts.releaseTimeout)
		defer timer.Stop()

		select {
		case <-done:
		case <-timer.C:
			b.logger.Warn("publisher worker did not exit in time, detaching",
				"timeout", b.opts.releaseTimeout)
		}
		b.close()
	})
}

type publisherMetrics struct {
	registry  *metric.MetricsRegistry
	owner     string
	core      *metric.Metrics
	pushes    *prometheus.CounterVec
	coalesced prometheus.Counter
}

func newPublisherMetrics(registry *metric.MetricsRegistry, name string) (*publisherMetrics, error) {
	m := &publisherMetrics{
		registry: registry,
		owner:    "publisher." + name,
		core:     registry.CoreMetrics(),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rtkit",
			Subsystem:   "publisher",
			Name:        "pushes_total",
			ConstLabels: prometheus.Labels{"connector": name},
			Help:        "Total number of pushes by port status",
		}, []string{"status"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rtkit",
			Subsystem:   "publisher",
			Name:        "coalesced_updates_total",
			ConstLabels: prometheus.Labels{"connector": name},
			Help:        "Total number of updates absorbed by an already pending push",
		}),
	}

	if err := registry.RegisterCounterVec(m.owner, "pushes", m.pushes); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(m.owner, "coalesced", m.coalesced); err != nil {
		registry.Unregister(m.owner, "pushes")
		return nil, err
	}
	return m, nil
}

func (m *publisherMetrics) recordPush(status errors.PortStatus) {
	m.pushes.WithLabelValues(status.String()).Inc()
	m.core.RecordPush(m.owner, status.String())
}

func (m *publisherMetrics) unregister() {
	m.registry.UnregisterOwner(m.owner)
}
