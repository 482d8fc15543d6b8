// Package health reports the health of a runtime.
//
// Statuses have three levels. Healthy means operating normally, degraded means
// operating with reduced function (a stopped execution context that still has
// components attached) and unhealthy means a part has failed (a component in
// the error state, or a lost NATS connection).
//
// Component and execution context statuses are derived on demand from a
// Source; subsystems without a state of their own push theirs:
//
//	monitor := health.NewMonitor(runtime)
//	monitor.UpdateHealthy("nats", "connected")
//	status := monitor.Check("rtcd")
//
// Messages of degraded and unhealthy statuses are sanitized: URLs, paths,
// IP addresses, ports and credentials are replaced by placeholders because
// the health endpoint is served without authentication.
package health
