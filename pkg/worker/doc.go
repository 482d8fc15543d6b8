// Package worker provides a generic bounded worker pool.
//
// A Pool[T] runs a fixed number of goroutines that pull work items of type T
// from a buffered queue and hand them to a processor function. Submit never
// blocks: when the queue is full it returns ErrQueueFull and counts the item
// as dropped. Stop closes the queue, lets the workers drain it and waits up
// to a timeout.
//
// The runtime uses pools to keep slow work off the scheduling path, for
// example naming registrations that may wait on a remote service:
//
//	pool := worker.NewPool("naming", 2, 64, func(ctx context.Context, op bindOp) error {
//	    return op.run(ctx)
//	}, worker.WithMetricsRegistry[bindOp](registry))
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// Counters are always tracked and reported by Stats. Prometheus metrics are
// registered only when a metric.MetricsRegistry is supplied.
package worker
