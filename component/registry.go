package component

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// Factory creates the logic of a component instance from its properties.
// Factories must not perform I/O; that belongs in OnInitialize.
type Factory func(props config.Properties, deps Dependencies) (any, error)

// Registration holds factory and metadata for a component type
type Registration struct {
	Name        string            `json:"name"`        // Factory name (e.g., "sequencer")
	Category    string            `json:"category"`    // Free-form grouping (source, sink, filter)
	Description string            `json:"description"` // Human-readable description
	Version     string            `json:"version"`     // Component version
	Defaults    config.Properties `json:"defaults"`    // Properties applied under instance properties
	Factory     Factory           `json:"-"`           // Factory function (not serializable)
}

// Registry manages component factories and instances.
// It provides thread-safe registration and lookup of both factories (for creation)
// and instances (for discovery and management).
type Registry struct {
	factories map[string]*Registration
	instances map[string]*RTObject
	mu        sync.RWMutex
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]*Registration),
		instances: make(map[string]*RTObject),
	}
}

// RegisterFactory registers a component factory.
// Returns an error if a factory with the same name is already registered.
func (r *Registry) RegisterFactory(registration *Registration) error {
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "registration validation")
	}
	if err := ValidateName(registration.Name); err != nil {
		return errors.WrapInvalid(err, "Registry", "RegisterFactory", "factory name validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[registration.Name]; exists {
		msg := fmt.Errorf("factory '%s': %w", registration.Name, errors.ErrAlreadyExists)
		return errors.WrapInvalid(msg, "Registry", "RegisterFactory", "duplicate factory check")
	}

	r.factories[registration.Name] = registration
	return nil
}

// CreateComponent creates and registers a component instance.
// typeName selects the factory, instanceName is the unique instance identifier
// and props are layered over the factory defaults.
func (r *Registry) CreateComponent(
	typeName, instanceName string, props config.Properties, deps Dependencies, opts ...Option,
) (*RTObject, error) {
	if err := ValidateName(instanceName); err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "CreateComponent", "instance name validation")
	}
	if err := ValidateProperties(props); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "property validation")
	}

	r.mu.RLock()
	registration, exists := r.factories[typeName]
	_, taken := r.instances[instanceName]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("%w: unknown component factory '%s'", errors.ErrBadParameter, typeName)
		return nil, errors.WrapInvalid(msg, "Registry", "CreateComponent", "factory lookup")
	}
	if taken {
		msg := fmt.Errorf("%w: instance '%s': %w", errors.ErrBadParameter, instanceName, errors.ErrAlreadyExists)
		return nil, errors.WrapInvalid(msg, "Registry", "CreateComponent", "duplicate instance check")
	}

	merged := registration.Defaults.Merge(props)
	logic, err := registration.Factory(merged, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "factory execution")
	}

	all := append(deps.options(), WithProperties(merged), WithTypeName(typeName))
	obj, err := NewRTObject(instanceName, logic, append(all, opts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "object construction")
	}

	if err := r.RegisterInstance(obj); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "instance registration")
	}
	return obj, nil
}

// RegisterInstance registers a component instance under its name.
// Returns an error if an instance with the same name is already registered.
func (r *Registry) RegisterInstance(obj *RTObject) error {
	if obj == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterInstance", "component validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[obj.Name()]; exists {
		msg := fmt.Errorf("%w: instance '%s': %w", errors.ErrBadParameter, obj.Name(), errors.ErrAlreadyExists)
		return errors.WrapInvalid(msg, "Registry", "RegisterInstance", "duplicate instance check")
	}
	r.instances[obj.Name()] = obj
	return nil
}

// UnregisterInstance removes a component instance from the registry.
// This is typically called after the component exited.
func (r *Registry) UnregisterInstance(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, name)
}

// Component retrieves a specific component instance by name.
// Returns nil if the component is not found.
func (r *Registry) Component(name string) *RTObject {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances[name]
}

// ListComponents returns a copy of the instance table.
func (r *Registry) ListComponents() map[string]*RTObject {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*RTObject, len(r.instances))
	maps.Copy(result, r.instances)
	return result
}

// ListComponentTypes returns the registered factory names, sorted.
func (r *Registry) ListComponentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListFactories returns all registered factories without their functions.
func (r *Registry) ListFactories() map[string]Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Registration, len(r.factories))
	for name, registration := range r.factories {
		result[name] = Registration{
			Name:        registration.Name,
			Category:    registration.Category,
			Description: registration.Description,
			Version:     registration.Version,
			Defaults:    registration.Defaults.Clone(),
		}
	}
	return result
}

// GetFactory returns a specific factory by name.
func (r *Registry) GetFactory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.factories[name]
	if !exists {
		return nil, false
	}
	return registration.Factory, true
}
