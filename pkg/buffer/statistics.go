package buffer

import "sync/atomic"

// Statistics counts ring buffer activity. It is always collected, with or
// without WithMetrics, and can be read while the buffer is in use.
type Statistics struct {
	writes    atomic.Int64
	reads     atomic.Int64
	peeks     atomic.Int64
	overflows atomic.Int64
	drops     atomic.Int64
	timeouts  atomic.Int64

	size    atomic.Int64
	maxSize atomic.Int64
}

// NewStatistics returns zeroed counters.
func NewStatistics() *Statistics {
	return &Statistics{}
}

func (s *Statistics) Write()    { s.writes.Add(1) }
func (s *Statistics) Read()     { s.reads.Add(1) }
func (s *Statistics) Peek()     { s.peeks.Add(1) }
func (s *Statistics) Overflow() { s.overflows.Add(1) }
func (s *Statistics) Drop()     { s.drops.Add(1) }
func (s *Statistics) Timeout()  { s.timeouts.Add(1) }

// UpdateSize records the current fill level and raises the high-water mark.
func (s *Statistics) UpdateSize(size int64) {
	s.size.Store(size)
	for {
		high := s.maxSize.Load()
		if size <= high || s.maxSize.CompareAndSwap(high, size) {
			return
		}
	}
}

func (s *Statistics) Writes() int64    { return s.writes.Load() }
func (s *Statistics) Reads() int64     { return s.reads.Load() }
func (s *Statistics) Peeks() int64     { return s.peeks.Load() }
func (s *Statistics) Overflows() int64 { return s.overflows.Load() }
func (s *Statistics) Drops() int64     { return s.drops.Load() }

// Timeouts counts blocking reads and writes that gave up.
func (s *Statistics) Timeouts() int64 { return s.timeouts.Load() }

// CurrentSize is the fill level at the last operation.
func (s *Statistics) CurrentSize() int64 { return s.size.Load() }

// MaxSize is the highest fill level seen.
func (s *Statistics) MaxSize() int64 { return s.maxSize.Load() }
