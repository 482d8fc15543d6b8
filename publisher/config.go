package publisher

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// Property keys recognised by ConfigFromProperties.
const (
	PropSubscriptionType = "dataport.subscription_type"
	PropPushRate         = "dataport.push_rate"
	PropPushPolicy       = "publisher.push_policy"
	PropSkipCount        = "publisher.skip_count"
)

// DefaultRate is the Periodic push rate in Hz when none is configured.
const DefaultRate = 1000.0

// DefaultReleaseTimeout bounds how long Release waits for the worker goroutine.
const DefaultReleaseTimeout = time.Second

// PushPolicy decides which buffered records one push sends.
type PushPolicy int

const (
	// PolicyNew sends only the newest record and discards older ones.
	PolicyNew PushPolicy = iota
	// PolicyFIFO sends the oldest record.
	PolicyFIFO
	// PolicyAll drains the buffer.
	PolicyAll
	// PolicySkip drains the buffer sending every (skip_count+1)-th record.
	PolicySkip
)

func (p PushPolicy) String() string {
	switch p {
	case PolicyNew:
		return "new"
	case PolicyFIFO:
		return "fifo"
	case PolicyAll:
		return "all"
	case PolicySkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParsePushPolicy maps a publisher.push_policy value onto a PushPolicy.
func ParsePushPolicy(s string) (PushPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "new":
		return PolicyNew, nil
	case "fifo":
		return PolicyFIFO, nil
	case "all":
		return PolicyAll, nil
	case "skip":
		return PolicySkip, nil
	default:
		return 0, fmt.Errorf("%w: unknown push policy %q", errors.ErrBadParameter, s)
	}
}

// Config selects and tunes a publisher.
type Config struct {
	Kind      Kind
	Rate      float64
	Policy    PushPolicy
	SkipCount int
}

// DefaultConfig returns a New publisher with the "new" push policy.
func DefaultConfig() Config {
	return Config{Kind: KindNew, Rate: DefaultRate, Policy: PolicyNew}
}

// validRate reports whether hz is a usable push rate: positive and finite.
func validRate(hz float64) bool {
	return hz > 0 && !math.IsInf(hz, 0) && !math.IsNaN(hz)
}

// Validate rejects rates that are not positive and finite, and negative skip
// counts.
func (c Config) Validate() error {
	if c.Kind == KindPeriodic && !validRate(c.Rate) {
		return errors.WrapInvalid(fmt.Errorf("%w: push rate must be positive and finite, got %v", errors.ErrBadParameter, c.Rate),
			"publisher", "Validate", "check rate")
	}
	if c.SkipCount < 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: skip count must be >= 0", errors.ErrBadParameter),
			"publisher", "Validate", "check skip count")
	}
	return nil
}

// ConfigFromProperties reads the dataport.* and publisher.* keys.
func ConfigFromProperties(props config.Properties) (Config, error) {
	cfg := DefaultConfig()
	var err error

	if cfg.Kind, err = ParseKind(props.String(PropSubscriptionType, "")); err != nil {
		return cfg, errors.WrapInvalid(err, "publisher", "ConfigFromProperties", "parse "+PropSubscriptionType)
	}
	if cfg.Rate, err = props.Float(PropPushRate, DefaultRate); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrBadParameter, err),
			"publisher", "ConfigFromProperties", "parse "+PropPushRate)
	}
	if cfg.Policy, err = ParsePushPolicy(props.String(PropPushPolicy, "")); err != nil {
		return cfg, errors.WrapInvalid(err, "publisher", "ConfigFromProperties", "parse "+PropPushPolicy)
	}
	if cfg.SkipCount, err = props.Int(PropSkipCount, 0); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrBadParameter, err),
			"publisher", "ConfigFromProperties", "parse "+PropSkipCount)
	}

	return cfg, cfg.Validate()
}
