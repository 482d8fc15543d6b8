package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatchNotifyThenWait(t *testing.T) {
	l := New()
	assert.Equal(t, Idle, l.State())

	assert.True(t, l.Notify())
	assert.Equal(t, Updated, l.State())

	assert.Equal(t, SignalUpdated, l.Wait())
	assert.Equal(t, Idle, l.State())
}

func TestLatchCoalescesPendingUpdates(t *testing.T) {
	l := New()

	assert.True(t, l.Notify())
	for i := 0; i < 9; i++ {
		assert.False(t, l.Notify())
	}

	assert.Equal(t, SignalUpdated, l.Wait())
	assert.Equal(t, uint64(9), l.Coalesced())
	assert.Equal(t, uint64(1), l.Notifies())

	// nothing else pending
	assert.Equal(t, SignalTimeout, l.WaitUntil(time.Now().Add(10*time.Millisecond)))
}

func TestLatchWaitBlocksUntilNotify(t *testing.T) {
	l := New()
	got := make(chan Signal, 1)
	go func() { got <- l.Wait() }()

	select {
	case <-got:
		t.Fatal("wait returned without a notify")
	case <-time.After(20 * time.Millisecond):
	}

	l.Notify()
	select {
	case sig := <-got:
		assert.Equal(t, SignalUpdated, sig)
	case <-time.After(time.Second):
		t.Fatal("notify did not wake the waiter")
	}
}

func TestLatchStopIsStickyAndWinsOverUpdate(t *testing.T) {
	l := New()
	l.Notify()
	l.Stop()
	l.Stop()

	assert.Equal(t, SignalStop, l.Wait())
	assert.Equal(t, SignalStop, l.Wait())
	assert.False(t, l.Notify())
	assert.Equal(t, Stopping, l.State())

	l.Reset()
	assert.Equal(t, Idle, l.State())
	assert.True(t, l.Notify())
}

func TestLatchStopWakesBlockedWaiter(t *testing.T) {
	l := New()
	got := make(chan Signal, 1)
	go func() { got <- l.Wait() }()

	time.Sleep(10 * time.Millisecond)
	l.Stop()

	select {
	case sig := <-got:
		assert.Equal(t, SignalStop, sig)
	case <-time.After(time.Second):
		t.Fatal("stop did not wake the waiter")
	}
}

func TestLatchWake(t *testing.T) {
	l := New()
	l.Wake()
	assert.Equal(t, SignalWake, l.WaitUntil(time.Now().Add(time.Second)))
	assert.Equal(t, Idle, l.State())
}

func TestLatchWaitUntilDeadline(t *testing.T) {
	l := New()

	start := time.Now()
	sig := l.WaitUntil(start.Add(30 * time.Millisecond))
	elapsed := time.Since(start)

	assert.Equal(t, SignalTimeout, sig)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)

	// a past deadline returns immediately
	assert.Equal(t, SignalTimeout, l.WaitUntil(time.Now().Add(-time.Second)))
}

func TestLatchConcurrentNotifiers(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Notify()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, SignalUpdated, l.Wait())
	assert.Equal(t, uint64(800), l.Notifies()+l.Coalesced())
}
