package component

import (
	"context"
	"sync"
	"time"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// fakeContext is a minimal ExecutionContext that applies transitions inline.
type fakeContext struct {
	id string

	mu       sync.Mutex
	running  bool
	states   map[*RTObject]State
	handles  map[*RTObject]Handle
	stopped  int
	removeFn func(obj *RTObject) error
	startErr error
}

func newFakeContext(id string) *fakeContext {
	return &fakeContext{
		id:      id,
		states:  make(map[*RTObject]State),
		handles: make(map[*RTObject]Handle),
	}
}

func (f *fakeContext) ID() string { return f.id }

func (f *fakeContext) attach(obj *RTObject, owned bool) (Handle, error) {
	h, err := obj.AttachContext(f, owned)
	if err != nil {
		return h, err
	}
	f.mu.Lock()
	f.states[obj] = StateInactive
	f.handles[obj] = h
	f.mu.Unlock()
	return h, nil
}

func (f *fakeContext) BindComponent(obj *RTObject) (Handle, error) { return f.attach(obj, true) }

func (f *fakeContext) AddComponent(obj *RTObject) (Handle, error) { return f.attach(obj, false) }

func (f *fakeContext) RemoveComponent(obj *RTObject) error {
	if f.removeFn != nil {
		if err := f.removeFn(obj); err != nil {
			return err
		}
	}
	f.mu.Lock()
	if f.states[obj] == StateActive {
		f.mu.Unlock()
		return errors.ErrPreconditionNotMet
	}
	delete(f.states, obj)
	delete(f.handles, obj)
	f.mu.Unlock()
	return obj.DetachContext(f)
}

func (f *fakeContext) ComponentState(obj *RTObject) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[obj]; ok {
		return s
	}
	return StateCreated
}

func (f *fakeContext) transition(obj *RTObject, from State, hook Hook, to State) error {
	f.mu.Lock()
	s, ok := f.states[obj]
	h := f.handles[obj]
	f.mu.Unlock()
	if !ok {
		return errors.ErrBadParameter
	}
	if s != from {
		return errors.ErrPreconditionNotMet
	}
	if err := obj.Invoke(context.Background(), hook, h); err != nil {
		f.mu.Lock()
		f.states[obj] = StateError
		f.mu.Unlock()
		return err
	}
	f.mu.Lock()
	f.states[obj] = to
	f.mu.Unlock()
	return nil
}

func (f *fakeContext) ActivateComponent(obj *RTObject) error {
	return f.transition(obj, StateInactive, HookActivated, StateActive)
}

func (f *fakeContext) DeactivateComponent(obj *RTObject) error {
	return f.transition(obj, StateActive, HookDeactivated, StateInactive)
}

func (f *fakeContext) ResetComponent(obj *RTObject) error {
	return f.transition(obj, StateError, HookReset, StateInactive)
}

func (f *fakeContext) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeContext) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return errors.ErrAlreadyStarted
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeContext) Stop(_ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.stopped++
	return nil
}

// recorder logs every hook it receives.
type recorder struct {
	mu    sync.Mutex
	calls []string

	failInit  error
	portNames []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) OnInitialize(_ context.Context, obj *RTObject) error {
	r.record("initialize")
	for _, name := range r.portNames {
		if _, err := obj.NewOutPort(name, config.Properties{}); err != nil {
			return err
		}
	}
	return r.failInit
}

func (r *recorder) OnFinalize(context.Context) error {
	r.record("finalize")
	return nil
}

func (r *recorder) OnActivated(context.Context, Handle) error {
	r.record("activated")
	return nil
}

func (r *recorder) OnDeactivated(context.Context, Handle) error {
	r.record("deactivated")
	return nil
}

func (r *recorder) OnExecute(context.Context, Handle) error {
	r.record("execute")
	return nil
}

// moder accepts mode changes.
type moder struct {
	modes []string
	fail  bool
}

func (m *moder) OnModeChanged(_ context.Context, _ Handle, mode string) error {
	if m.fail {
		return errors.ErrBadParameter
	}
	m.modes = append(m.modes, mode)
	return nil
}

// capturePublisher collects published log entries.
type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (c *capturePublisher) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return c.err
}
