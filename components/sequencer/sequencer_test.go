package sequencer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/execution"
	"github.com/c360/rtkit/port"
)

var flush = config.Properties{"dataport.subscription_type": "flush"}

func TestConfigFromProperties(t *testing.T) {
	cfg, err := ConfigFromProperties(config.Properties{})
	require.NoError(t, err)
	assert.Equal(t, Config{Port: "out", Start: 0, Step: 1, Count: 0, Scale: 1}, cfg)

	for _, props := range []config.Properties{
		{"start": "x"},
		{"step": "1.5"},
		{"count": "-1"},
		{"scale": "big"},
	} {
		_, err := ConfigFromProperties(props)
		assert.Error(t, err, props)
	}
}

func TestSequencer_WritesSamplesInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	net := port.NewNetwork()
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	obj, err := registry.CreateComponent(TypeName, "seq",
		config.Properties{"start": "10", "step": "5", "count": "3", "scale": "0.5"},
		component.Dependencies{Network: net})
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(ctx))
	assert.Equal(t, []string{"seq.out"}, obj.PortNames())

	sink, err := net.NewInPort("sink.in", nil)
	require.NoError(t, err)
	_, err = net.Connect(ctx, port.ConnectorProfile{Name: "seq-sink", Ports: []string{"seq.out", "sink.in"}, Properties: flush})
	require.NoError(t, err)

	ec, err := execution.New("trigger", execution.ExternalTrigger)
	require.NoError(t, err)
	_, err = ec.AddComponent(obj)
	require.NoError(t, err)
	require.NoError(t, ec.Start())
	defer func() { _ = ec.Stop(time.Second) }()
	require.NoError(t, ec.ActivateComponent(obj))

	for i := 0; i < 5; i++ {
		require.NoError(t, ec.TickWait(ctx))
	}

	in := port.NewTypedInPort[Sample](sink, nil)
	var last time.Time
	for _, want := range []int64{10, 15, 20} {
		v, tm, err := in.ReadValue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, v.Seq)
		assert.InDelta(t, float64(want)*0.5, v.Value, 1e-9)
		assert.False(t, tm.Time().Before(last), "timestamps are monotonic")
		last = tm.Time()
	}
	assert.False(t, sink.IsNew(), "count bounds the sequence")

	seq := obj.Logic().(*Sequencer)
	written, dropped := seq.Stats()
	assert.EqualValues(t, 3, written)
	assert.EqualValues(t, 0, dropped)

	require.NoError(t, ec.DeactivateComponent(obj))
	require.NoError(t, ec.ActivateComponent(obj))
	require.NoError(t, ec.TickWait(ctx))
	v, _, err := in.ReadValue(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, v.Seq, "activation restarts the sequence")
}

func TestSequencer_UnconnectedPortDropsNothing(t *testing.T) {
	s := New(Config{Port: "out", Step: 1, Scale: 1})
	net := port.NewNetwork()
	obj, err := component.NewRTObject("lonely", s, component.WithNetwork(net))
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(context.Background()))

	require.NoError(t, s.OnExecute(context.Background(), component.NoHandle))
	written, dropped := s.Stats()
	assert.EqualValues(t, 1, written)
	assert.EqualValues(t, 0, dropped)
}
