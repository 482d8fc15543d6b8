// Package execution provides the execution contexts that drive components
// through their lifecycle.
//
// A Context owns one scheduler goroutine. Periodic contexts run a round
// every 1/rate seconds against absolute deadlines; external-trigger contexts
// run a round per Tick, and ticks that arrive before the scheduler wakes
// coalesce into one round. Each round visits the attached components in
// registration order: Active components get OnExecute then OnStateUpdate,
// components in Error get OnError.
//
// ActivateComponent, DeactivateComponent and ResetComponent may be called
// from any goroutine. While the scheduler runs, a request is recorded and
// applied between rounds so lifecycle hooks never overlap execution of the
// same component; with synchronous transitions the caller waits up to the
// transition timeout. While the context is stopped the transition is applied
// on the caller's goroutine.
//
// A hook that returns an error or panics moves only that component to Error.
// The scheduler keeps running.
package execution
