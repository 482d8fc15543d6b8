// Package rtkit is a component runtime for robot software. Components are
// driven through a lifecycle by execution contexts and exchange timestamped
// records through ports joined by connectors.
//
// # Layout
//
//	pkg/buffer         bounded ring buffers with overflow and underflow policies
//	pkg/notify         the three-state latch that wakes publisher and scheduler workers
//	publisher          Flush, New and Periodic push strategies
//	port               out and in ports, connectors, local and NATS transports
//	component          RTObject, lifecycle hooks, factories and the type registry
//	execution          Periodic and ExternalTrigger execution contexts
//	naming             name directory with memory and NATS KV backends
//	manager            builds a runtime from configuration and tears it down
//	health, admin      health aggregation and the HTTP admin API
//	cmd/rtcd           the daemon
//
// # Data path
//
//	OutPort.Write ─▶ connector buffer ─▶ publisher ─▶ channel ─▶ InPort buffer ─▶ InPort.Read
//
// A Flush publisher delivers on the writer's goroutine. New and Periodic
// publishers deliver from their own worker, woken by a write or by a timer.
//
// # Lifecycle
//
// A component is Created until initialized, then Inactive, Active or Error in
// each context it is attached to, and Exiting once finalized. Transitions are
// requested through the context, which applies them between rounds:
//
//	ec.ActivateComponent(obj)   Inactive ─▶ Active, runs OnActivated
//	ec.DeactivateComponent(obj) Active ─▶ Inactive, runs OnDeactivated
//	ec.ResetComponent(obj)      Error ─▶ Inactive, runs OnReset
//
// A failing hook moves the component to Error in that context.
package rtkit
