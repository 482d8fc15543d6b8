package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/execution"
	"github.com/c360/rtkit/pkg/timestamp"
	"github.com/c360/rtkit/port"
)

func TestRelay_ForwardsWithTimestamps(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	net := port.NewNetwork()
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))
	obj, err := registry.CreateComponent(TypeName, "relay", config.Properties{"batch": "2"},
		component.Dependencies{Network: net})
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(ctx))
	assert.Equal(t, []string{"relay.in", "relay.out"}, obj.PortNames())

	src, err := net.NewOutPort("src.out", nil)
	require.NoError(t, err)
	dst, err := net.NewInPort("dst.in", nil)
	require.NoError(t, err)
	flush := config.Properties{"dataport.subscription_type": "flush"}
	for _, ports := range [][]string{{"src.out", "relay.in"}, {"relay.out", "dst.in"}} {
		_, err := net.Connect(ctx, port.ConnectorProfile{Ports: ports, Properties: flush})
		require.NoError(t, err)
	}

	ec, err := execution.New("trigger", execution.ExternalTrigger)
	require.NoError(t, err)
	_, err = ec.AddComponent(obj)
	require.NoError(t, err)
	require.NoError(t, ec.Start())
	defer func() { _ = ec.Stop(time.Second) }()
	require.NoError(t, ec.ActivateComponent(obj))

	stamps := []timestamp.Time{{Sec: 100, Nsec: 1}, {Sec: 100, Nsec: 2}, {Sec: 101, Nsec: 0}}
	for i, tm := range stamps {
		require.NoError(t, src.Write(port.Record{Timestamp: tm, Payload: []byte{byte(i)}}))
	}

	require.NoError(t, ec.TickWait(ctx))
	r := obj.Logic().(*Relay)
	assert.EqualValues(t, 2, r.Forwarded(), "batch bounds one round")
	require.NoError(t, ec.TickWait(ctx))
	assert.EqualValues(t, 3, r.Forwarded())
	assert.Zero(t, r.Dropped())

	for i, tm := range stamps {
		rec, err := dst.Read()
		require.NoError(t, err)
		assert.Equal(t, tm, rec.Timestamp)
		assert.Equal(t, []byte{byte(i)}, rec.Payload)
	}
}

func TestRelay_Reset(t *testing.T) {
	r := &Relay{batch: 1}
	r.dropped.Store(4)
	require.NoError(t, r.OnReset(context.Background(), 0))
	assert.Zero(t, r.Dropped())
	assert.EqualValues(t, 1, r.Resets())
}

func TestRegister_InvalidBatch(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))
	_, err := registry.CreateComponent(TypeName, "r", config.Properties{"batch": "0"}, component.Dependencies{})
	assert.Error(t, err)
	_, err = registry.CreateComponent(TypeName, "r", config.Properties{"fail_on_drop": "maybe"}, component.Dependencies{})
	assert.Error(t, err)
}
