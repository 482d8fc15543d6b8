package component

import (
	"time"
)

// State represents the lifecycle state of a component as seen by one
// execution context.
type State int

const (
	// StateCreated indicates the component was created but not initialized
	StateCreated State = iota
	// StateInactive indicates the component is alive but not executing
	StateInactive
	// StateActive indicates the component receives execution callbacks
	StateActive
	// StateError indicates a hook failed; the component receives OnError until reset
	StateError
	// StateExiting indicates the component was finalized
	StateExiting
)

// String returns a string representation of the component state
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, bool) {
	for st := StateCreated; st <= StateExiting; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateCreated, false
}

// Handle identifies an execution context from a component's viewpoint.
type Handle int

const (
	// NoHandle is returned when a component is not attached to a context.
	NoHandle Handle = -1

	// ParticipantOffset is the first handle given to participating contexts.
	// Owned contexts are numbered from zero.
	ParticipantOffset Handle = 1000
)

// IsOwned reports whether h names a context the component owns.
func (h Handle) IsOwned() bool {
	return h >= 0 && h < ParticipantOffset
}

// ExecutionContext is the part of a scheduler an RTObject drives during
// Initialize and Exit. The execution package provides the implementations.
type ExecutionContext interface {
	// ID names the context within its runtime.
	ID() string

	// BindComponent attaches obj as the owner of this context.
	BindComponent(obj *RTObject) (Handle, error)

	// AddComponent attaches obj as a participant.
	AddComponent(obj *RTObject) (Handle, error)

	// RemoveComponent detaches obj. It fails while obj is Active.
	RemoveComponent(obj *RTObject) error

	ComponentState(obj *RTObject) State
	ActivateComponent(obj *RTObject) error
	DeactivateComponent(obj *RTObject) error
	ResetComponent(obj *RTObject) error

	IsRunning() bool
	Start() error
	Stop(timeout time.Duration) error
}
