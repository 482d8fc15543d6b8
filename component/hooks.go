package component

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/c360/rtkit/errors"
)

// Lifecycle hooks. A component implements only the hooks it needs; every
// missing hook behaves as if it returned nil.

// Initializer runs once when the component is initialized. Ports are
// usually created here through obj.
type Initializer interface {
	OnInitialize(ctx context.Context, obj *RTObject) error
}

// Finalizer runs once when the component exits.
type Finalizer interface {
	OnFinalize(ctx context.Context) error
}

// StartupHandler runs when an attached execution context starts.
type StartupHandler interface {
	OnStartup(ctx context.Context, ec Handle) error
}

// ShutdownHandler runs when an attached execution context stops.
type ShutdownHandler interface {
	OnShutdown(ctx context.Context, ec Handle) error
}

// ActivationHandler runs on the Inactive to Active transition.
type ActivationHandler interface {
	OnActivated(ctx context.Context, ec Handle) error
}

// DeactivationHandler runs on the Active to Inactive transition.
type DeactivationHandler interface {
	OnDeactivated(ctx context.Context, ec Handle) error
}

// AbortHandler runs once when the component enters Error.
type AbortHandler interface {
	OnAborting(ctx context.Context, ec Handle) error
}

// ErrorHandler runs on every round while the component is in Error.
type ErrorHandler interface {
	OnError(ctx context.Context, ec Handle) error
}

// ResetHandler runs when a reset is requested in Error. Returning nil moves
// the component back to Inactive.
type ResetHandler interface {
	OnReset(ctx context.Context, ec Handle) error
}

// Executor runs on every round while the component is Active.
type Executor interface {
	OnExecute(ctx context.Context, ec Handle) error
}

// StateUpdater runs after OnExecute in the same round.
type StateUpdater interface {
	OnStateUpdate(ctx context.Context, ec Handle) error
}

// RateChangeHandler runs on the scheduler goroutine after a periodic
// context changed its rate.
type RateChangeHandler interface {
	OnRateChanged(ctx context.Context, ec Handle) error
}

// ModeChangeHandler runs after RTObject.ChangeMode selected a new mode.
type ModeChangeHandler interface {
	OnModeChanged(ctx context.Context, ec Handle, mode string) error
}

// Hook names one lifecycle callback.
type Hook int

const (
	HookInitialize Hook = iota
	HookFinalize
	HookStartup
	HookShutdown
	HookActivated
	HookDeactivated
	HookAborting
	HookError
	HookReset
	HookExecute
	HookStateUpdate
	HookRateChanged
	HookModeChanged
)

var hookNames = [...]string{
	HookInitialize:  "on_initialize",
	HookFinalize:    "on_finalize",
	HookStartup:     "on_startup",
	HookShutdown:    "on_shutdown",
	HookActivated:   "on_activated",
	HookDeactivated: "on_deactivated",
	HookAborting:    "on_aborting",
	HookError:       "on_error",
	HookReset:       "on_reset",
	HookExecute:     "on_execute",
	HookStateUpdate: "on_state_update",
	HookRateChanged: "on_rate_changed",
	HookModeChanged: "on_mode_changed",
}

func (h Hook) String() string {
	if h >= 0 && int(h) < len(hookNames) {
		return hookNames[h]
	}
	return "unknown"
}

// Capability is a set of behaviours a component exposes.
type Capability uint8

const (
	// DataFlow components take part in execution rounds.
	DataFlow Capability = 1 << iota
	// FSM components drive their own state machine from execution rounds.
	FSM
	// MultiMode components accept mode changes.
	MultiMode
)

// Has reports whether every capability in other is present.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	s := ""
	for _, v := range []struct {
		c    Capability
		name string
	}{{DataFlow, "dataflow"}, {FSM, "fsm"}, {MultiMode, "multimode"}} {
		if c.Has(v.c) {
			if s != "" {
				s += "|"
			}
			s += v.name
		}
	}
	return s
}

// CapabilityDeclarer lets a component add capabilities that cannot be
// derived from its hooks, such as FSM.
type CapabilityDeclarer interface {
	Capabilities() Capability
}

// CapabilitiesOf derives the capability set of logic from the hooks it
// implements plus anything it declares.
func CapabilitiesOf(logic any) Capability {
	var c Capability
	switch logic.(type) {
	case Executor, StateUpdater, RateChangeHandler:
		c |= DataFlow
	}
	if _, ok := logic.(ModeChangeHandler); ok {
		c |= MultiMode
	}
	if d, ok := logic.(CapabilityDeclarer); ok {
		c |= d.Capabilities()
	}
	return c
}

// Invoke runs fn and converts a panic inside it into an error wrapping
// errors.ErrHookFault. Errors returned by fn pass through unchanged.
func Invoke(hook Hook, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapFatal(
				fmt.Errorf("%w: %v\n%s", errors.ErrHookFault, r, debug.Stack()),
				"component", "Invoke", hook.String())
		}
	}()
	return fn()
}

// call dispatches hook to logic. Hooks the logic does not implement succeed.
func call(ctx context.Context, logic any, hook Hook, ec Handle, mode string) error {
	switch hook {
	case HookFinalize:
		if h, ok := logic.(Finalizer); ok {
			return h.OnFinalize(ctx)
		}
	case HookStartup:
		if h, ok := logic.(StartupHandler); ok {
			return h.OnStartup(ctx, ec)
		}
	case HookShutdown:
		if h, ok := logic.(ShutdownHandler); ok {
			return h.OnShutdown(ctx, ec)
		}
	case HookActivated:
		if h, ok := logic.(ActivationHandler); ok {
			return h.OnActivated(ctx, ec)
		}
	case HookDeactivated:
		if h, ok := logic.(DeactivationHandler); ok {
			return h.OnDeactivated(ctx, ec)
		}
	case HookAborting:
		if h, ok := logic.(AbortHandler); ok {
			return h.OnAborting(ctx, ec)
		}
	case HookError:
		if h, ok := logic.(ErrorHandler); ok {
			return h.OnError(ctx, ec)
		}
	case HookReset:
		if h, ok := logic.(ResetHandler); ok {
			return h.OnReset(ctx, ec)
		}
	case HookExecute:
		if h, ok := logic.(Executor); ok {
			return h.OnExecute(ctx, ec)
		}
	case HookStateUpdate:
		if h, ok := logic.(StateUpdater); ok {
			return h.OnStateUpdate(ctx, ec)
		}
	case HookRateChanged:
		if h, ok := logic.(RateChangeHandler); ok {
			return h.OnRateChanged(ctx, ec)
		}
	case HookModeChanged:
		if h, ok := logic.(ModeChangeHandler); ok {
			return h.OnModeChanged(ctx, ec, mode)
		}
	default:
		return errors.WrapInvalid(errors.ErrUnsupported, "component", "call", "hook "+hook.String())
	}
	return nil
}
