package health

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/execution"
)

type fakeSource struct {
	objs []*component.RTObject
	ecs  []*execution.Context
}

func (f fakeSource) Components() []*component.RTObject { return f.objs }
func (f fakeSource) Contexts() []*execution.Context   { return f.ecs }

type failing struct{}

func (failing) OnExecute(context.Context, component.Handle) error { return fmt.Errorf("sensor fault") }

func TestMonitor_PushedStatuses(t *testing.T) {
	m := NewMonitor(nil)
	m.UpdateHealthy("nats", "connected")
	m.Update("naming", Status{Status: StatusHealthy})

	got, ok := m.Get("naming")
	require.True(t, ok)
	assert.Equal(t, "naming", got.Component, "the key names the status")
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, []string{"naming", "nats"}, m.Names())

	m.UpdateUnhealthy("nats", "disconnected from nats://10.0.0.5:4222")
	got, _ = m.Get("nats")
	assert.Equal(t, "disconnected from [URL]", got.Message)
	assert.True(t, m.Check("rtcd").IsUnhealthy())

	m.UpdateDegraded("nats", "reconnecting")
	assert.True(t, m.Check("rtcd").IsDegraded())

	m.Remove("nats")
	_, ok = m.Get("nats")
	assert.False(t, ok)
	assert.True(t, m.Check("rtcd").IsHealthy())
}

func TestMonitor_CheckSource(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	obj, err := component.NewRTObject("arm", failing{})
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(ctx))

	ec, err := execution.New("trigger", execution.ExternalTrigger)
	require.NoError(t, err)
	_, err = ec.AddComponent(obj)
	require.NoError(t, err)

	m := NewMonitor(fakeSource{objs: []*component.RTObject{obj}, ecs: []*execution.Context{ec}})
	status := m.Check("rtcd")
	assert.True(t, status.IsDegraded(), "stopped context with a component attached")
	require.Len(t, status.SubStatuses, 2)
	assert.Equal(t, "component.arm", status.SubStatuses[0].Component)
	assert.Equal(t, "ec.trigger", status.SubStatuses[1].Component)

	require.NoError(t, ec.Start())
	defer func() { _ = ec.Stop(time.Second) }()
	require.NoError(t, ec.ActivateComponent(obj))
	assert.True(t, m.Check("rtcd").IsHealthy())

	require.NoError(t, ec.TickWait(ctx))
	require.Equal(t, component.StateError, ec.ComponentState(obj))
	status = m.Check("rtcd")
	assert.True(t, status.IsUnhealthy())
	assert.Equal(t, "error in trigger", status.SubStatuses[0].Message)
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	m := NewMonitor(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("part-%d", i)
			for j := 0; j < 100; j++ {
				m.UpdateHealthy(name, "ok")
				_ = m.Check("rtcd")
				_, _ = m.Get(name)
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.Names(), 8)
}

func TestMonitor_SetSource(t *testing.T) {
	m := NewMonitor(nil)
	ec, err := execution.New("main", execution.Periodic)
	require.NoError(t, err)
	assert.Empty(t, m.Check("rtcd").SubStatuses)

	m.SetSource(fakeSource{ecs: []*execution.Context{ec}})
	status := m.Check("rtcd")
	require.Len(t, status.SubStatuses, 1)
	assert.Equal(t, "ec.main", status.SubStatuses[0].Component)
}
