package execution

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// Factory builds an execution context from its properties.
type Factory func(id string, props config.Properties, opts ...Option) (*Context, error)

// Registry maps execution context type names to factories. NewRegistry
// pre-registers one factory per Kind under Kind.String().
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the periodic and external-trigger factories.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.factories[Periodic.String()] = KindFactory(Periodic)
	r.factories[ExternalTrigger.String()] = KindFactory(ExternalTrigger)
	return r
}

// KindFactory returns a factory that reads Config from properties and builds
// a context of kind k.
func KindFactory(k Kind) Factory {
	return func(id string, props config.Properties, opts ...Option) (*Context, error) {
		cfg, err := ConfigFromProperties(props)
		if err != nil {
			return nil, err
		}
		return New(id, k, append([]Option{WithConfig(cfg)}, opts...)...)
	}
}

// Register adds a factory. Names are unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.WrapInvalid(errors.ErrBadParameter, "Registry", "Register", "validate factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: execution context type %s: %w", errors.ErrBadParameter, name, errors.ErrAlreadyExists),
			"Registry", "Register", "duplicate check")
	}
	r.factories[name] = f
	return nil
}

// Create builds a context of the named type. Kind aliases accepted by
// ParseKind resolve to the built-in factories.
func (r *Registry) Create(typeName, id string, props config.Properties, opts ...Option) (*Context, error) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		k, err := ParseKind(typeName)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Registry", "Create", "type lookup")
		}
		r.mu.RLock()
		f = r.factories[k.String()]
		r.mu.RUnlock()
	}
	ec, err := f(id, props, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "factory execution")
	}
	return ec, nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
