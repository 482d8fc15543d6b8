package buffer

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/c360/rtkit/errors"
)

// ringBuffer is a thread-safe ring buffer with configurable overflow and underflow policies.
type ringBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	size     int
	head     int            // next write position
	tail     int            // next read position
	stats    *Statistics    // ALWAYS initialized for observability
	metrics  *bufferMetrics // Optional Prometheus metrics
	opts     *bufferOptions[T]

	notEmpty *sync.Cond
	notFull  *sync.Cond
	closed   bool
}

func newRingBuffer[T any](capacity int, opts *bufferOptions[T]) (*ringBuffer[T], error) {
	if capacity < 1 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: capacity must be >= 1, got %d", errors.ErrBadParameter, capacity),
			"RingBuffer", "New", "validate capacity")
	}

	stats := NewStatistics()

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "RingBuffer", "New", "metrics registration")
		}
	}

	rb := &ringBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    stats,
		metrics:  metrics,
		opts:     opts,
	}
	rb.notEmpty = sync.NewCond(&rb.mu)
	rb.notFull = sync.NewCond(&rb.mu)

	return rb, nil
}

// Write stores item according to the overflow policy, bounded by the write timeout.
func (rb *ringBuffer[T]) Write(item T) error {
	return rb.WriteContext(context.Background(), item)
}

// WriteContext stores item according to the overflow policy.
func (rb *ringBuffer[T]) WriteContext(ctx context.Context, item T) error {
	if rb.opts.overflowPolicy == Block && rb.opts.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rb.opts.writeTimeout)
		defer cancel()
	}

	var dropped *T
	err := rb.write(ctx, item, &dropped)

	// dropCallback runs outside the lock
	if dropped != nil && rb.opts.dropCallback != nil {
		rb.opts.dropCallback(*dropped)
	}
	return err
}

func (rb *ringBuffer[T]) write(ctx context.Context, item T, dropped **T) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return errors.WrapInvalid(errors.ErrBufferClosed, "RingBuffer", "Write", "buffer closed")
	}

	if rb.size == rb.capacity {
		rb.recordOverflow()

		switch rb.opts.overflowPolicy {
		case DiscardOldest:
			old := rb.items[rb.tail]
			rb.advanceTail()
			rb.recordDrop()
			*dropped = &old

		case DiscardNewest:
			rb.recordDrop()
			*dropped = &item
			return errors.ErrBufferFull

		case Fail:
			return errors.ErrBufferFull

		case Block:
			if err := rb.waitLocked(ctx, rb.notFull, func() bool { return rb.size < rb.capacity }); err != nil {
				return rb.waitError(err, "Write")
			}
		}
	}

	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % rb.capacity
	rb.size++

	rb.stats.Write()
	rb.stats.UpdateSize(int64(rb.size))
	if rb.metrics != nil {
		rb.metrics.recordWrite(rb.size, rb.capacity)
	}

	rb.notEmpty.Signal()
	return nil
}

// Read removes the oldest item according to the underflow policy, bounded by the read timeout.
func (rb *ringBuffer[T]) Read() (T, error) {
	return rb.ReadContext(context.Background())
}

// ReadContext removes the oldest item according to the underflow policy.
func (rb *ringBuffer[T]) ReadContext(ctx context.Context) (T, error) {
	if rb.opts.underflowPolicy == WaitForData && rb.opts.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rb.opts.readTimeout)
		defer cancel()
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T

	if rb.size == 0 {
		if rb.closed {
			return zero, errors.WrapInvalid(errors.ErrBufferClosed, "RingBuffer", "Read", "buffer closed")
		}
		if rb.opts.underflowPolicy == ReturnEmpty {
			return zero, errors.ErrBufferEmpty
		}
		if err := rb.waitLocked(ctx, rb.notEmpty, func() bool { return rb.size > 0 }); err != nil {
			return zero, rb.waitError(err, "Read")
		}
	}

	item := rb.items[rb.tail]
	rb.advanceTail()

	rb.stats.Read()
	rb.stats.UpdateSize(int64(rb.size))
	if rb.metrics != nil {
		rb.metrics.recordRead(rb.size, rb.capacity)
	}

	rb.notFull.Signal()
	return item, nil
}

// ReadLatest returns the newest item and discards the older ones.
func (rb *ringBuffer[T]) ReadLatest() (T, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	if rb.size == 0 {
		return zero, errors.ErrBufferEmpty
	}

	newest := (rb.head - 1 + rb.capacity) % rb.capacity
	item := rb.items[newest]
	for rb.size > 0 {
		rb.advanceTail()
	}

	rb.stats.Read()
	rb.stats.UpdateSize(0)
	if rb.metrics != nil {
		rb.metrics.recordRead(0, rb.capacity)
	}

	rb.notFull.Broadcast()
	return item, nil
}

// ReadBatch retrieves and removes up to max items from the buffer.
func (rb *ringBuffer[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	readCount := min(max, rb.size)
	result := make([]T, readCount)
	for i := 0; i < readCount; i++ {
		result[i] = rb.items[rb.tail]
		rb.advanceTail()
		rb.stats.Read()
	}

	rb.stats.UpdateSize(int64(rb.size))
	if rb.metrics != nil {
		rb.metrics.updateSize(rb.size, rb.capacity)
	}

	rb.notFull.Broadcast()
	return result
}

// Peek returns the oldest item without removing it.
func (rb *ringBuffer[T]) Peek() (T, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	if rb.size == 0 {
		return zero, errors.ErrBufferEmpty
	}
	rb.stats.Peek()
	if rb.metrics != nil {
		rb.metrics.recordPeek()
	}
	return rb.items[rb.tail], nil
}

// Readable returns the number of items that can be read.
func (rb *ringBuffer[T]) Readable() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Writable returns the number of free slots.
func (rb *ringBuffer[T]) Writable() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.capacity - rb.size
}

// Length returns the fixed capacity. It is immutable, so no lock is needed.
func (rb *ringBuffer[T]) Length() int {
	return rb.capacity
}

// Reset discards all content and wakes blocked writers.
func (rb *ringBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	var zero T
	for i := range rb.items {
		rb.items[i] = zero
	}
	rb.head = 0
	rb.tail = 0
	rb.size = 0

	rb.stats.UpdateSize(0)
	if rb.metrics != nil {
		rb.metrics.updateSize(0, rb.capacity)
	}

	rb.notFull.Broadcast()
}

// Stats returns buffer statistics (always available for observability).
func (rb *ringBuffer[T]) Stats() *Statistics {
	return rb.stats
}

// Close marks the buffer closed and wakes every blocked caller.
func (rb *ringBuffer[T]) Close() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed {
		return nil
	}
	rb.closed = true

	rb.notEmpty.Broadcast()
	rb.notFull.Broadcast()
	if rb.metrics != nil {
		rb.metrics.unregister()
	}
	return nil
}

// advanceTail drops the slot at tail. Caller holds mu.
func (rb *ringBuffer[T]) advanceTail() {
	var zero T
	rb.items[rb.tail] = zero
	rb.tail = (rb.tail + 1) % rb.capacity
	rb.size--
}

// waitLocked blocks on cond until ready() holds, the buffer closes or ctx ends.
// Caller holds mu.
func (rb *ringBuffer[T]) waitLocked(ctx context.Context, cond *sync.Cond, ready func() bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Cond.Wait cannot select on ctx, so cancellation is turned into a broadcast.
	stop := context.AfterFunc(ctx, func() {
		rb.mu.Lock()
		cond.Broadcast()
		rb.mu.Unlock()
	})
	defer stop()

	for !ready() {
		if rb.closed {
			return errors.ErrBufferClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		cond.Wait()
	}
	return nil
}

func (rb *ringBuffer[T]) waitError(err error, method string) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		rb.stats.Timeout()
		if rb.metrics != nil {
			rb.metrics.recordTimeout()
		}
		return errors.ErrBufferTimeout
	case stderrors.Is(err, errors.ErrBufferClosed):
		return errors.WrapInvalid(err, "RingBuffer", method, "buffer closed during blocking wait")
	default:
		return errors.WrapTransient(err, "RingBuffer", method, "blocking wait")
	}
}

func (rb *ringBuffer[T]) recordOverflow() {
	rb.stats.Overflow()
	if rb.metrics != nil {
		rb.metrics.recordOverflow()
	}
}

func (rb *ringBuffer[T]) recordDrop() {
	rb.stats.Drop()
	if rb.metrics != nil {
		rb.metrics.recordDrop()
	}
}
