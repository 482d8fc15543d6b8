// Package manager assembles a runtime from explicit parts.
//
// A Runtime owns the component and execution context factory registries, the
// port directory and every object created through it:
//
//	rt := manager.New(manager.WithLogger(logger), manager.WithMetrics(registry))
//	componentregistry.Register(rt.ComponentRegistry())
//	if err := rt.Apply(ctx, cfg); err != nil { ... }
//	defer rt.Shutdown(ctx, 5*time.Second)
//
// Apply creates the execution contexts, then the components (binding each to
// the context it owns and attaching it to the ones it participates in), then
// the connectors, starts the remaining contexts and finally activates the
// components marked activate.
//
// When a Binder is configured, components are published as "<instance>.rtc"
// and contexts as "<id>.ec". Naming is opportunistic: failures are logged and
// never returned to the caller.
//
// Shutdown removes every connector and then tears objects down in reverse
// creation order.
package manager
