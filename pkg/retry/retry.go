package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/c360/rtkit/errors"
)

var (
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Config is a backoff policy.
type Config struct {
	MaxAttempts  int           // attempts including the first; values < 1 run once
	InitialDelay time.Duration // wait before the second attempt
	MaxDelay     time.Duration // upper bound for a single wait
	Multiplier   float64       // growth factor between waits
	Jitter       bool          // add up to 25% to each wait
}

// BindPolicy is the default policy for registering a name. A directory that
// is briefly unreachable at startup gets about three seconds to come back.
func BindPolicy() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// UnbindPolicy is the default policy for removing a name. Unbinds mostly run
// during shutdown, under the binder's drain timeout, so it gives up sooner.
func UnbindPolicy() Config {
	return Config{
		MaxAttempts:  2,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Multiplier:   2.0,
	}
}

// Validate reports a policy that cannot be run.
func (c Config) Validate() error {
	switch {
	case c.InitialDelay < 0:
		return fmt.Errorf("%w: retry initial delay %v is negative", errors.ErrBadParameter, c.InitialDelay)
	case c.MaxDelay < 0:
		return fmt.Errorf("%w: retry max delay %v is negative", errors.ErrBadParameter, c.MaxDelay)
	case c.Multiplier < 0:
		return fmt.Errorf("%w: retry multiplier %v is negative", errors.ErrBadParameter, c.Multiplier)
	case c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay:
		return fmt.Errorf("%w: retry max delay %v is below initial delay %v",
			errors.ErrBadParameter, c.MaxDelay, c.InitialDelay)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	return c
}

// Retryable reports whether err is worth another attempt: only errors that
// classify as transient are.
func Retryable(err error) bool {
	return err != nil && errors.Classify(err) == errors.ErrorTransient
}

// Do runs fn until it succeeds, returns an error that is not Retryable, the
// attempts run out or ctx ends. A non-retryable error is returned unchanged.
// Exhaustion wraps errors.ErrMaxRetriesExceeded together with the last error.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if err := cfg.Validate(); err != nil {
		return errors.WrapInvalid(err, "retry", "Do", "check policy")
	}
	cfg = cfg.withDefaults()

	var lastErr error
	delay := cfg.InitialDelay
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		lastErr = err

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, stderrors.Join(ctx.Err(), err))
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		timer := time.NewTimer(wait(delay, cfg.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, stderrors.Join(ctx.Err(), err))
		case <-timer.C:
		}

		next := float64(delay) * cfg.Multiplier
		if next > float64(cfg.MaxDelay) {
			delay = cfg.MaxDelay
		} else {
			delay = time.Duration(next)
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", errors.ErrMaxRetriesExceeded, cfg.MaxAttempts, lastErr)
}

func wait(delay time.Duration, jitter bool) time.Duration {
	if !jitter || delay < 4 {
		return delay
	}
	randMu.Lock()
	extra := time.Duration(randSource.Int63n(int64(delay / 4)))
	randMu.Unlock()
	return delay + extra
}
