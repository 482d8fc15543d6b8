// Package buffer provides the ring buffer used at both ends of a connector,
// with configurable overflow and underflow policies, built-in statistics and
// optional Prometheus metrics.
//
// # Quick Start
//
//	buf, err := buffer.NewRingBuffer[port.Record](8)
//	if err != nil {
//		return err
//	}
//
//	err = buf.Write(rec)   // nil, ErrBufferFull, ErrBufferTimeout
//	rec, err = buf.Read()  // nil, ErrBufferEmpty, ErrBufferTimeout
//
// Capacity below one is rejected with ErrBadParameter. The cursor invariant
// Readable() + Writable() == Length() holds at every instant.
//
// # Policies
//
// Overflow, applied when Write finds the buffer full:
//
//   - DiscardOldest: evict the oldest item and store the new one (default, "overwrite")
//   - DiscardNewest: drop the incoming item, return ErrBufferFull ("do_nothing")
//   - Block: wait for space, bounded by WithWriteTimeout or the caller's context ("block")
//   - Fail: return ErrBufferFull immediately ("error")
//
// Underflow, applied when Read finds the buffer empty:
//
//   - ReturnEmpty: return ErrBufferEmpty immediately (default, "return_empty")
//   - WaitForData: wait for an item, bounded by WithReadTimeout or the caller's context ("block")
//
// ConfigFromProperties reads the connector property keys buffer.length,
// buffer.write.full_policy, buffer.write.timeout, buffer.read.empty_policy and
// buffer.read.timeout into a Config that WithConfig applies.
//
// # Observability
//
// Statistics are always collected with atomic counters and are available via
// Stats(). WithMetrics additionally exports counters and gauges under the
// rtkit_buffer_* names, labelled with the given component prefix.
//
// # Thread Safety
//
// One mutex and two condition variables guard slots and cursors. Any number of
// producers and consumers may call Write and Read concurrently. Close wakes
// every blocked caller with ErrBufferClosed.
package buffer
