package manager

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/port"
)

// Action is a lifecycle request addressed to a component.
type Action string

// Component actions.
const (
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionReset      Action = "reset"
)

// ParseAction parses "activate", "deactivate" or "reset".
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionActivate, ActionDeactivate, ActionReset:
		return a, nil
	}
	return "", errors.WrapInvalid(fmt.Errorf("%w: action %q", errors.ErrBadParameter, s),
		"Runtime", "ParseAction", "parse action")
}

// Apply builds the runtime described by cfg: execution contexts, components
// with their owned and participating contexts, connectors, then activation of
// components marked activate. Remaining contexts are started last. Apply stops
// at the first error; call Shutdown to release what was built.
func (r *Runtime) Apply(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Runtime", "Apply", "config check")
	}

	for _, id := range sortedKeys(cfg.ExecutionContexts) {
		ecCfg := cfg.ExecutionContexts[id]
		if _, err := r.CreateContext(ecCfg.Type, id, ecCfg.Properties); err != nil {
			return errors.Wrap(err, "Runtime", "Apply", "execution context "+id)
		}
	}

	var activate []string
	for _, name := range sortedKeys(cfg.Components) {
		compCfg := cfg.Components[name]
		if compCfg.Disabled {
			r.logger.Debug("skipping disabled component", "instance", name)
			continue
		}

		var opts []component.Option
		if compCfg.ExecutionContext != "" {
			ec, ok := r.Context(compCfg.ExecutionContext)
			if !ok {
				return errors.WrapInvalid(
					fmt.Errorf("component %s: execution context %q: %w", name, compCfg.ExecutionContext, errors.ErrNotFound),
					"Runtime", "Apply", "owned context lookup")
			}
			opts = append(opts, component.WithOwnedContext(ec))
		}
		if _, err := r.CreateComponent(ctx, compCfg.Type, name, compCfg.Properties, opts...); err != nil {
			return errors.Wrap(err, "Runtime", "Apply", "component "+name)
		}
		for _, ecID := range compCfg.Participates {
			if _, err := r.Participate(name, ecID); err != nil {
				return errors.Wrap(err, "Runtime", "Apply", "participate "+name)
			}
		}
		if compCfg.Activate {
			activate = append(activate, name)
		}
	}

	for i, connCfg := range cfg.Connectors {
		profile := port.ConnectorProfile{
			ID:         connCfg.ID,
			Name:       connCfg.Name,
			Ports:      append([]string(nil), connCfg.Ports...),
			Properties: connCfg.Properties.Clone(),
		}
		if _, err := r.Connect(ctx, profile); err != nil {
			return errors.Wrap(err, "Runtime", "Apply", fmt.Sprintf("connector %d", i))
		}
	}

	if err := r.Start(); err != nil {
		return errors.Wrap(err, "Runtime", "Apply", "start contexts")
	}

	for _, name := range activate {
		if err := r.Do(name, ActionActivate, component.NoHandle); err != nil {
			return errors.Wrap(err, "Runtime", "Apply", "activate "+name)
		}
	}

	r.logger.Info("runtime applied",
		"contexts", len(cfg.ExecutionContexts),
		"components", len(r.Components()),
		"connectors", len(cfg.Connectors))
	return nil
}

// Do runs action for the component in the context registered under handle,
// or in every attached context when handle is component.NoHandle.
func (r *Runtime) Do(instance string, action Action, handle component.Handle) error {
	obj, ok := r.Component(instance)
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("component %q: %w", instance, errors.ErrNotFound),
			"Runtime", "Do", "find component")
	}

	handles := []component.Handle{handle}
	if handle == component.NoHandle {
		handles = obj.Handles()
		if len(handles) == 0 {
			return errors.WrapInvalid(
				fmt.Errorf("%w: component %s has no execution context", errors.ErrPreconditionNotMet, instance),
				"Runtime", "Do", "find context")
		}
	}

	var errs []error
	for _, h := range handles {
		ec, ok := obj.Context(h)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: handle %d", errors.ErrBadParameter, h))
			continue
		}
		var err error
		switch action {
		case ActionActivate:
			err = ec.ActivateComponent(obj)
		case ActionDeactivate:
			err = ec.DeactivateComponent(obj)
		case ActionReset:
			err = ec.ResetComponent(obj)
		default:
			err = fmt.Errorf("%w: action %q", errors.ErrBadParameter, action)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ec.ID(), err))
		}
	}
	if err := stderrors.Join(errs...); err != nil {
		return errors.Wrap(err, "Runtime", "Do", string(action))
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
