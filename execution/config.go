package execution

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// Kind selects the scheduling discipline.
type Kind int

const (
	// Periodic runs one round every 1/rate seconds.
	Periodic Kind = iota
	// ExternalTrigger runs one round per Tick, coalescing ticks that arrive
	// while a round is pending.
	ExternalTrigger
)

func (k Kind) String() string {
	switch k {
	case Periodic:
		return "periodic"
	case ExternalTrigger:
		return "external_trigger"
	default:
		return "unknown"
	}
}

// ParseKind accepts the kind names plus the short aliases used in
// configuration files.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "periodic", "periodicexecutioncontext":
		return Periodic, nil
	case "external_trigger", "exttrig", "ext_trig", "exttrigexecutioncontext":
		return ExternalTrigger, nil
	}
	return Periodic, fmt.Errorf("%w: unknown execution context kind %q", errors.ErrBadParameter, s)
}

// Property keys read by ConfigFromProperties.
const (
	PropRate              = "exec_cxt.periodic.rate"
	PropSyncTransition    = "exec_cxt.sync_transition"
	PropTransitionTimeout = "exec_cxt.transition_timeout"
	PropStopTimeout       = "exec_cxt.stop_timeout"
)

// Config holds the tunables of one execution context.
type Config struct {
	// Rate is the round frequency in Hz. Only periodic contexts use it.
	Rate float64
	// SyncTransition makes transition requests wait until applied.
	SyncTransition bool
	// TransitionTimeout bounds that wait.
	TransitionTimeout time.Duration
	// StopTimeout bounds how long Stop waits for the scheduler goroutine.
	StopTimeout time.Duration
}

// DefaultConfig returns a 1 kHz context with synchronous transitions.
func DefaultConfig() Config {
	return Config{
		Rate:              1000,
		SyncTransition:    true,
		TransitionTimeout: 500 * time.Millisecond,
		StopTimeout:       2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validateRate(c.Rate); err != nil {
		return err
	}
	if c.TransitionTimeout < 0 || c.StopTimeout <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: timeouts must be positive", errors.ErrBadParameter), "Config", "Validate", "timeouts")
	}
	if c.SyncTransition && c.TransitionTimeout == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: sync transitions need a transition timeout", errors.ErrBadParameter),
			"Config", "Validate", "timeouts")
	}
	return nil
}

func validateRate(hz float64) error {
	if hz <= 0 || math.IsInf(hz, 0) || math.IsNaN(hz) {
		return errors.WrapInvalid(fmt.Errorf("%w: rate %v", errors.ErrBadParameter, hz),
			"Config", "Validate", "rate")
	}
	return nil
}

// ConfigFromProperties layers props over DefaultConfig.
func ConfigFromProperties(props config.Properties) (Config, error) {
	cfg := DefaultConfig()
	var err error

	if cfg.Rate, err = props.Float(PropRate, cfg.Rate); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrBadParameter, err),
			"execution", "ConfigFromProperties", "parse rate")
	}
	if cfg.SyncTransition, err = props.Bool(PropSyncTransition, cfg.SyncTransition); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrBadParameter, err),
			"execution", "ConfigFromProperties", "parse sync transition")
	}
	if cfg.TransitionTimeout, err = props.Seconds(PropTransitionTimeout, cfg.TransitionTimeout); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrBadParameter, err),
			"execution", "ConfigFromProperties", "parse transition timeout")
	}
	if cfg.StopTimeout, err = props.Seconds(PropStopTimeout, cfg.StopTimeout); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrBadParameter, err),
			"execution", "ConfigFromProperties", "parse stop timeout")
	}
	return cfg, cfg.Validate()
}
