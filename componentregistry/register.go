// Package componentregistry registers the bundled component types.
package componentregistry

import (
	"errors"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/components/console"
	"github.com/c360/rtkit/components/relay"
	"github.com/c360/rtkit/components/sequencer"
	pkgerrors "github.com/c360/rtkit/errors"
)

// Register registers every bundled component with registry:
//
//   - sequencer (source)
//   - console (sink)
//   - relay (filter)
//
// Execution context kinds are registered by execution.NewRegistry itself.
func Register(registry *component.Registry) error {
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	if err := sequencer.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "sequencer registration")
	}
	if err := console.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "console registration")
	}
	if err := relay.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "relay registration")
	}
	return nil
}
