// Package buffer provides the fixed-capacity ring buffer that backs every connector.
//
// The ring buffer is generic, thread-safe, and applies a configurable policy when
// a write finds it full (overflow) or a read finds it empty (underflow):
//   - DiscardOldest, DiscardNewest, Block and Fail on overflow
//   - ReturnEmpty and WaitForData on underflow
//   - Statistics always enabled for observability
//   - Optional Prometheus metrics integration via functional options
package buffer

import (
	"context"
)

// Buffer is a fixed-capacity FIFO of records. Readable()+Writable() == Length()
// holds at every instant.
type Buffer[T any] interface {
	// Write stores item according to the overflow policy. Returns nil,
	// ErrBufferFull, ErrBufferTimeout or ErrBufferClosed (wrapped).
	Write(item T) error

	// WriteContext is Write bounded by ctx as well as the configured write timeout.
	WriteContext(ctx context.Context, item T) error

	// Read removes and returns the oldest item according to the underflow policy.
	// Returns ErrBufferEmpty, ErrBufferTimeout or ErrBufferClosed (wrapped) on failure.
	Read() (T, error)

	// ReadContext is Read bounded by ctx as well as the configured read timeout.
	ReadContext(ctx context.Context) (T, error)

	// ReadLatest returns the newest item and discards everything older.
	// It never blocks.
	ReadLatest() (T, error)

	// ReadBatch removes up to max items, oldest first. It never blocks.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it.
	Peek() (T, error)

	// Readable returns the number of items that can be read.
	Readable() int

	// Writable returns the number of free slots.
	Writable() int

	// Length returns the fixed capacity.
	Length() int

	// Reset discards all content.
	Reset()

	// Stats returns buffer statistics (always available for observability).
	Stats() *Statistics

	// Close wakes blocked callers and rejects further writes.
	Close() error
}

// OverflowPolicy defines how Write behaves when the buffer is full.
type OverflowPolicy int

const (
	// DiscardOldest evicts the oldest item and stores the new one.
	DiscardOldest OverflowPolicy = iota

	// DiscardNewest drops the incoming item and reports ErrBufferFull.
	DiscardNewest

	// Block waits for space, bounded by the write timeout when one is set.
	Block

	// Fail reports ErrBufferFull immediately without dropping anything.
	Fail
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DiscardOldest:
		return "DiscardOldest"
	case DiscardNewest:
		return "DiscardNewest"
	case Block:
		return "Block"
	case Fail:
		return "Fail"
	default:
		return "Unknown"
	}
}

// UnderflowPolicy defines how Read behaves when the buffer is empty.
type UnderflowPolicy int

const (
	// ReturnEmpty reports ErrBufferEmpty immediately.
	ReturnEmpty UnderflowPolicy = iota

	// WaitForData blocks until an item arrives, bounded by the read timeout when one is set.
	WaitForData
)

// String returns a human-readable representation of the underflow policy.
func (p UnderflowPolicy) String() string {
	switch p {
	case ReturnEmpty:
		return "ReturnEmpty"
	case WaitForData:
		return "WaitForData"
	default:
		return "Unknown"
	}
}

// DropCallback is called when an item is dropped due to overflow policy.
// It receives the item that was dropped.
type DropCallback[T any] func(item T)

// NewRingBuffer creates a ring buffer with the given capacity.
// Capacity below one is a programming error and returns ErrBadParameter.
// Stats are ALWAYS collected. Metrics are optional via WithMetrics().
func NewRingBuffer[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newRingBuffer(capacity, opts)
}
