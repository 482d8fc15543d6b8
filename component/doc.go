// Package component provides the RT-component model: lifecycle states, the
// hook interfaces user logic implements, the RTObject that wraps the logic
// together with its ports and execution contexts, and the factory Registry
// components are created from.
//
// # Lifecycle
//
// A component moves through these states:
//
//	Created --Initialize--> Inactive <--activate/deactivate--> Active
//	Inactive|Active --hook failure--> Error --reset ok--> Inactive
//	any --Exit--> Exiting
//
// Created and Exiting belong to the RTObject itself. Inactive, Active and
// Error are tracked per execution context by the execution package, which is
// the only place transitions are applied.
//
// # Hooks
//
// Logic implements any subset of the single-method hook interfaces
// (Initializer, Executor, ResetHandler and so on). A hook that is not
// implemented succeeds. A hook returning an error is the only path into the
// Error state; a panic inside a hook is recovered by Invoke and reported as an
// error wrapping errors.ErrHookFault.
//
//	type counter struct{ n int }
//
//	func (c *counter) OnExecute(ctx context.Context, ec component.Handle) error {
//		c.n++
//		return nil
//	}
//
// # Capabilities
//
// The capability set of a component is derived from its hooks: Executor,
// StateUpdater or RateChangeHandler give DataFlow, ModeChangeHandler gives
// MultiMode. Capabilities that cannot be derived, such as FSM, are declared
// through CapabilityDeclarer.
//
// # Registration
//
// Component packages export a Register(*component.Registry) error function
// and componentregistry.RegisterAll wires them. There is no init()
// self-registration, so every runtime can build an isolated registry.
package component
