package component

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/port"
)

func TestNewRTObject_Validation(t *testing.T) {
	_, err := NewRTObject("", &recorder{})
	assert.Equal(t, errors.BadParameter, errors.Code(err))

	_, err = NewRTObject("has.dot", &recorder{})
	assert.Equal(t, errors.BadParameter, errors.Code(err))

	_, err = NewRTObject("ok", nil)
	assert.Equal(t, errors.BadParameter, errors.Code(err))

	_, err = NewRTObject("ok", &recorder{}, WithOwnedContext(newFakeContext("a")), WithOwnedContext(newFakeContext("b")))
	assert.Equal(t, errors.BadParameter, errors.Code(err))
}

func TestRTObject_InitializeBindsOwnedContext(t *testing.T) {
	net := port.NewNetwork()
	ec := newFakeContext("ec0")
	r := &recorder{portNames: []string{"out"}}

	obj, err := NewRTObject("camera", r, WithNetwork(net), WithOwnedContext(ec))
	require.NoError(t, err)
	assert.Equal(t, StateCreated, obj.State())

	require.NoError(t, obj.Initialize(context.Background()))
	assert.True(t, obj.IsAlive())
	assert.True(t, ec.IsRunning())
	assert.Equal(t, Handle(0), obj.ContextHandle(ec))
	assert.Same(t, ec, obj.OwnedContext())
	assert.Equal(t, StateInactive, obj.State())
	assert.Equal(t, []string{"camera.out"}, obj.PortNames())
	assert.Equal(t, []string{"camera.out"}, net.Ports())

	err = obj.Initialize(context.Background())
	assert.Equal(t, errors.PreconditionNotMet, errors.Code(err))
}

func TestRTObject_InitializeFailureStaysCreated(t *testing.T) {
	net := port.NewNetwork()
	ec := newFakeContext("ec0")
	r := &recorder{portNames: []string{"out"}, failInit: stderrors.New("no device")}

	obj, err := NewRTObject("camera", r, WithNetwork(net), WithOwnedContext(ec))
	require.NoError(t, err)

	err = obj.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no device")
	assert.Equal(t, StateCreated, obj.State())
	assert.False(t, ec.IsRunning())
	assert.Empty(t, net.Ports(), "ports created by a failed initialize are removed")
}

func TestRTObject_InitializeRollsBackWhenOwnedContextFails(t *testing.T) {
	net := port.NewNetwork()
	ec := newFakeContext("ec0")
	ec.startErr = stderrors.New("timer unavailable")
	r := &recorder{portNames: []string{"out"}}

	obj, err := NewRTObject("camera", r, WithNetwork(net), WithOwnedContext(ec))
	require.NoError(t, err)

	err = obj.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timer unavailable")
	assert.Equal(t, StateCreated, obj.State())
	assert.False(t, obj.IsAlive())
	assert.Equal(t, NoHandle, obj.ContextHandle(ec))
	assert.Equal(t, StateCreated, ec.ComponentState(obj), "owned context no longer holds the object")
	assert.Empty(t, net.Ports())

	ec.mu.Lock()
	ec.startErr = nil
	ec.mu.Unlock()
	require.NoError(t, obj.Initialize(context.Background()))
	assert.True(t, ec.IsRunning())
	assert.Equal(t, Handle(0), obj.ContextHandle(ec))
	assert.Equal(t, []string{"camera.out"}, net.Ports())
}

func TestRTObject_InitializeRollsBackWhenBindFails(t *testing.T) {
	ec := &rejectingOwner{fakeContext: newFakeContext("ec1")}
	obj, err := NewRTObject("camera", &recorder{}, WithOwnedContext(ec))
	require.NoError(t, err)

	err = obj.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)
	assert.Equal(t, StateCreated, obj.State())
	assert.Equal(t, NoHandle, obj.ContextHandle(ec.fakeContext), "half-done attach is undone")
	assert.False(t, ec.IsRunning())
}

// rejectingOwner attaches the owner and then fails BindComponent.
type rejectingOwner struct {
	*fakeContext
}

func (r *rejectingOwner) BindComponent(obj *RTObject) (Handle, error) {
	if _, err := r.attach(obj, true); err != nil {
		return NoHandle, err
	}
	return NoHandle, errors.ErrAlreadyExists
}

func TestRTObject_InitializePanicIsIntercepted(t *testing.T) {
	obj, err := NewRTObject("flaky", initPanics{})
	require.NoError(t, err)

	err = obj.Initialize(context.Background())
	assert.ErrorIs(t, err, errors.ErrHookFault)
	assert.Equal(t, StateCreated, obj.State())
}

type initPanics struct{}

func (initPanics) OnInitialize(context.Context, *RTObject) error { panic("driver crashed") }

func TestRTObject_Handles(t *testing.T) {
	obj, err := NewRTObject("arm", &recorder{})
	require.NoError(t, err)

	_, err = obj.AttachContext(newFakeContext("early"), false)
	assert.Equal(t, errors.PreconditionNotMet, errors.Code(err), "attach before initialize")

	require.NoError(t, obj.Initialize(context.Background()))

	owner := newFakeContext("owner")
	p1 := newFakeContext("p1")
	p2 := newFakeContext("p2")

	h, err := owner.BindComponent(obj)
	require.NoError(t, err)
	assert.Equal(t, Handle(0), h)

	_, err = newFakeContext("second-owner").BindComponent(obj)
	assert.Equal(t, errors.PreconditionNotMet, errors.Code(err))

	h1, err := p1.AddComponent(obj)
	require.NoError(t, err)
	h2, err := p2.AddComponent(obj)
	require.NoError(t, err)
	assert.Equal(t, ParticipantOffset, h1)
	assert.Equal(t, ParticipantOffset+1, h2)

	_, err = p1.AddComponent(obj)
	assert.ErrorIs(t, err, errors.ErrAlreadyExists)

	require.NoError(t, p1.RemoveComponent(obj))
	h3, err := newFakeContext("p3").AddComponent(obj)
	require.NoError(t, err)
	assert.Equal(t, ParticipantOffset, h3, "freed participant handle is reused")

	assert.Equal(t, []Handle{0, ParticipantOffset, ParticipantOffset + 1}, obj.Handles())
	assert.Equal(t, NoHandle, obj.ContextHandle(p1))
	assert.Error(t, obj.DetachContext(p1))
}

func TestRTObject_Exit(t *testing.T) {
	net := port.NewNetwork()
	ec := newFakeContext("owner")
	peer := newFakeContext("peer")
	r := &recorder{portNames: []string{"out"}}

	obj, err := NewRTObject("camera", r, WithNetwork(net), WithOwnedContext(ec))
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(context.Background()))
	_, err = peer.AddComponent(obj)
	require.NoError(t, err)

	require.NoError(t, ec.ActivateComponent(obj))
	require.NoError(t, peer.ActivateComponent(obj))
	assert.Equal(t, StateActive, obj.State())

	require.NoError(t, obj.Exit(context.Background(), time.Second))

	assert.Equal(t, StateExiting, obj.State())
	assert.False(t, ec.IsRunning())
	assert.Equal(t, 1, ec.stopped)
	assert.Empty(t, obj.Handles())
	assert.Empty(t, net.Ports())
	assert.Equal(t,
		[]string{"initialize", "activated", "activated", "deactivated", "deactivated", "finalize"},
		r.Calls())

	err = obj.Exit(context.Background(), time.Second)
	assert.Equal(t, errors.PreconditionNotMet, errors.Code(err))
}

func TestRTObject_ExitJoinsFailures(t *testing.T) {
	ec := newFakeContext("owner")
	ec.removeFn = func(*RTObject) error { return stderrors.New("busy") }

	obj, err := NewRTObject("arm", &recorder{}, WithOwnedContext(ec))
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(context.Background()))

	err = obj.Exit(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
	assert.Equal(t, StateExiting, obj.State())
	assert.Empty(t, obj.Handles())
}

func TestRTObject_ChangeMode(t *testing.T) {
	obj, err := NewRTObject("plain", &recorder{})
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(context.Background()))
	err = obj.ChangeMode(context.Background(), "fast")
	assert.Equal(t, errors.Unsupported, errors.Code(err))

	m := &moder{}
	multi, err := NewRTObject("multi", m)
	require.NoError(t, err)
	err = multi.ChangeMode(context.Background(), "fast")
	assert.Equal(t, errors.PreconditionNotMet, errors.Code(err), "before initialize")

	require.NoError(t, multi.Initialize(context.Background()))
	require.NoError(t, multi.ChangeMode(context.Background(), "fast"))
	assert.Equal(t, "fast", multi.Mode())
	assert.Equal(t, []string{"fast"}, m.modes)

	m.fail = true
	assert.Error(t, multi.ChangeMode(context.Background(), "slow"))
	assert.Equal(t, "fast", multi.Mode(), "failed change keeps the previous mode")
}

func TestRTObject_ChangeModeDeferredWhileOwnerRuns(t *testing.T) {
	ec := newFakeContext("owner")
	m := &moder{}
	obj, err := NewRTObject("multi", m, WithOwnedContext(ec))
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(context.Background()))

	require.NoError(t, obj.ChangeMode(context.Background(), "fast"))
	assert.Empty(t, obj.Mode())

	require.NoError(t, obj.ApplyPendingMode(context.Background(), 0))
	assert.Equal(t, "fast", obj.Mode())
	require.NoError(t, obj.ApplyPendingMode(context.Background(), 0), "nothing pending")
	assert.Len(t, m.modes, 1)
}

func TestRTObject_Describe(t *testing.T) {
	net := port.NewNetwork()
	ec := newFakeContext("owner")
	obj, err := NewRTObject("camera", &recorder{portNames: []string{"out"}},
		WithNetwork(net), WithOwnedContext(ec), WithTypeName("sequencer"),
		WithProperties(config.Properties{"rate": "10"}))
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(context.Background()))

	info := obj.Describe()
	assert.Equal(t, "camera", info.Name)
	assert.Equal(t, "sequencer", info.Type)
	assert.Equal(t, "inactive", info.State)
	assert.Equal(t, "dataflow", info.Capabilities)
	assert.Equal(t, []string{"camera.out"}, info.Ports)
	require.Len(t, info.Contexts, 1)
	assert.Equal(t, ContextInfo{Handle: 0, ID: "owner", Owned: true, State: "inactive"}, info.Contexts[0])
	assert.Equal(t, "10", obj.Properties()["rate"])
}

func TestRTObject_PortsNeedNetwork(t *testing.T) {
	obj, err := NewRTObject("lonely", &recorder{})
	require.NoError(t, err)
	_, err = obj.NewOutPort("out", nil)
	assert.ErrorIs(t, err, errors.ErrPreconditionNotMet)
	_, err = obj.NewInPort("in", nil)
	assert.ErrorIs(t, err, errors.ErrPreconditionNotMet)
}
