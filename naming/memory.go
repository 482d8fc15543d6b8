package naming

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/rtkit/errors"
)

// Memory is an in-process Service.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns an empty directory.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Bind(_ context.Context, name string, entry Entry) error {
	if err := ValidateName(name); err != nil {
		return errors.WrapInvalid(err, "naming.Memory", "Bind", "validate name")
	}
	entry.Ports = append([]string(nil), entry.Ports...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = entry
	return nil
}

func (m *Memory) Unbind(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
	return nil
}

func (m *Memory) Resolve(_ context.Context, name string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return Entry{}, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrNotFound, name),
			"naming.Memory", "Resolve", "lookup")
	}
	return e, nil
}

func (m *Memory) List(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
