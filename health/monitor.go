package health

import (
	"sort"
	"sync"
	"time"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/execution"
)

// Source lists the objects whose health is derived on demand.
// *manager.Runtime implements it.
type Source interface {
	Components() []*component.RTObject
	Contexts() []*execution.Context
}

// Monitor holds statuses pushed by subsystems, such as the NATS connection,
// and combines them with the states of a Source.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	source   Source
}

// NewMonitor creates a monitor. src may be nil.
func NewMonitor(src Source) *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		source:   src,
	}
}

// SetSource replaces the source consulted by Check.
func (m *Monitor) SetSource(src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = src
}

// Update records the status of a named subsystem.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// UpdateHealthy marks name healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy marks name unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded marks name degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get returns the pushed status of name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	return status, ok
}

// Remove forgets name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
}

// Names returns the pushed subsystem names, sorted.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check aggregates the pushed statuses with one status per component and
// execution context of the source.
func (m *Monitor) Check(system string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		subs = append(subs, s)
	}
	src := m.source
	m.mu.RUnlock()

	if src != nil {
		for _, obj := range src.Components() {
			subs = append(subs, FromComponent(obj.Describe()))
		}
		for _, ec := range src.Contexts() {
			subs = append(subs, FromContext(ec.Profile()))
		}
	}
	return Aggregate(system, subs)
}
