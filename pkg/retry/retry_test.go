package retry

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/rtkit/errors"
)

func fast(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond, Multiplier: 2}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast(3), func() error {
		attempts++
		if attempts < 3 {
			return errors.WrapTransient(errors.ErrConnectionLost, "dir", "Bind", "put")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_Exhausted(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fast(3), func() error {
		attempts++
		return stderrors.New("directory unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, errors.ErrMaxRetriesExceeded)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "directory unavailable")
}

func TestDo_StopsOnClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"invalid", errors.WrapInvalid(errors.ErrBadParameter, "dir", "Bind", "check name")},
		{"bad parameter sentinel", errors.ErrBadParameter},
		{"fatal", errors.WrapFatal(stderrors.New("disk gone"), "dir", "Bind", "put")},
		{"out of resources", errors.ErrOutOfResources},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			err := Do(context.Background(), fast(5), func() error {
				attempts++
				return tt.err
			})
			assert.Equal(t, 1, attempts)
			assert.Same(t, tt.err, err, "returned unchanged")
			assert.NotErrorIs(t, err, errors.ErrMaxRetriesExceeded)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(stderrors.New("boom")), "unclassified errors are retried")
	assert.True(t, Retryable(errors.ErrSendTimeout))
	assert.False(t, Retryable(errors.WrapInvalid(stderrors.New("timeout"), "dir", "Bind", "check")),
		"the classification wins over the message")
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: time.Second}

	var attempts atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, cfg, func() error {
		attempts.Add(1)
		return stderrors.New("unreachable")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "unreachable")
	assert.Equal(t, int32(1), attempts.Load())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDo_ContextAlreadyDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, fast(5), func() error {
		attempts++
		return stderrors.New("unreachable")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDo_BackoffIsCapped(t *testing.T) {
	cfg := Config{MaxAttempts: 4, InitialDelay: 10 * time.Millisecond, MaxDelay: 15 * time.Millisecond, Multiplier: 10}

	start := time.Now()
	_ = Do(context.Background(), cfg, func() error { return stderrors.New("busy") })
	elapsed := time.Since(start)

	// waits: 10ms, 15ms, 15ms
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func() error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"bind policy", BindPolicy(), true},
		{"unbind policy", UnbindPolicy(), true},
		{"zero value", Config{}, true},
		{"negative initial", Config{InitialDelay: -time.Millisecond}, false},
		{"negative max", Config{MaxDelay: -time.Millisecond}, false},
		{"negative multiplier", Config{Multiplier: -1}, false},
		{"max below initial", Config{InitialDelay: time.Second, MaxDelay: time.Millisecond}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, errors.BadParameter, errors.Code(err))
		})
	}
}

func TestDo_InvalidPolicyDoesNotRun(t *testing.T) {
	called := false
	err := Do(context.Background(), Config{MaxDelay: -1}, func() error {
		called = true
		return nil
	})
	assert.True(t, errors.IsInvalid(err))
	assert.False(t, called)
}

func TestPolicies(t *testing.T) {
	bind, unbind := BindPolicy(), UnbindPolicy()
	assert.Greater(t, bind.MaxAttempts, unbind.MaxAttempts)
	assert.Less(t, unbind.MaxDelay, bind.MaxDelay)
	assert.True(t, bind.Jitter)
}
