package execution

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/pkg/notify"
)

// hookRecorder counts hook calls and can be told to fail or block.
type hookRecorder struct {
	mu    sync.Mutex
	calls map[string]int

	failExecuteAt int
	panicExecute  bool
	failReset     bool

	// block, when set, holds the first OnExecute until closed.
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{calls: make(map[string]int)}
}

func (p *hookRecorder) inc(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[name]++
	return p.calls[name]
}

func (p *hookRecorder) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *hookRecorder) OnStartup(context.Context, component.Handle) error {
	p.inc("startup")
	return nil
}

func (p *hookRecorder) OnShutdown(context.Context, component.Handle) error {
	p.inc("shutdown")
	return nil
}

func (p *hookRecorder) OnActivated(context.Context, component.Handle) error {
	p.inc("activated")
	return nil
}

func (p *hookRecorder) OnDeactivated(context.Context, component.Handle) error {
	p.inc("deactivated")
	return nil
}

func (p *hookRecorder) OnAborting(context.Context, component.Handle) error {
	p.inc("aborting")
	return nil
}

func (p *hookRecorder) OnError(context.Context, component.Handle) error {
	p.inc("error")
	return nil
}

func (p *hookRecorder) OnReset(context.Context, component.Handle) error {
	p.inc("reset")
	if p.failReset {
		return fmt.Errorf("reset refused")
	}
	return nil
}

func (p *hookRecorder) OnExecute(context.Context, component.Handle) error {
	n := p.inc("execute")
	if p.block != nil {
		p.once.Do(func() {
			close(p.entered)
			<-p.block
		})
	}
	if p.panicExecute {
		panic("sensor exploded")
	}
	if p.failExecuteAt > 0 && n == p.failExecuteAt {
		return fmt.Errorf("execute %d failed", n)
	}
	return nil
}

func (p *hookRecorder) OnStateUpdate(context.Context, component.Handle) error {
	p.inc("state_update")
	return nil
}

func (p *hookRecorder) OnRateChanged(context.Context, component.Handle) error {
	p.inc("rate_changed")
	return nil
}

// blocking arms p so its first OnExecute parks until the returned release is called.
func (p *hookRecorder) blocking() (release func()) {
	p.block = make(chan struct{})
	p.entered = make(chan struct{})
	var once sync.Once
	return func() { once.Do(func() { close(p.block) }) }
}

func newObject(t *testing.T, name string, logic any) *component.RTObject {
	t.Helper()
	obj, err := component.NewRTObject(name, logic)
	require.NoError(t, err)
	require.NoError(t, obj.Initialize(context.Background()))
	return obj
}

func newTestContext(t *testing.T, kind Kind, mutate func(*Config)) *Context {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Rate = 100
	if mutate != nil {
		mutate(&cfg)
	}
	ec, err := New("ec-"+t.Name(), kind, WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ec.Stop(time.Second) })
	return ec
}

func tickN(t *testing.T, ec *Context, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		require.NoError(t, ec.TickWait(ctx))
	}
}

func (c *Context) pendingFor(obj *component.RTObject) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.findLocked(obj)
	return a != nil && a.pending != nil
}

func (c *Context) stopping() bool {
	return c.latch.State() == notify.Stopping
}
