package buffer

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// Property keys recognised by ConfigFromProperties.
const (
	PropLength       = "buffer.length"
	PropFullPolicy   = "buffer.write.full_policy"
	PropWriteTimeout = "buffer.write.timeout"
	PropEmptyPolicy  = "buffer.read.empty_policy"
	PropReadTimeout  = "buffer.read.timeout"
)

// DefaultLength is the capacity used when buffer.length is not set.
const DefaultLength = 8

// Config is the buffer policy negotiated for one connector endpoint.
type Config struct {
	Length       int
	Overflow     OverflowPolicy
	Underflow    UnderflowPolicy
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// DefaultConfig returns an 8-slot overwrite buffer that never blocks.
func DefaultConfig() Config {
	return Config{
		Length:    DefaultLength,
		Overflow:  DiscardOldest,
		Underflow: ReturnEmpty,
	}
}

// ParseOverflowPolicy maps the buffer.write.full_policy vocabulary onto a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return DiscardOldest, nil
	case "do_nothing", "discard_newest":
		return DiscardNewest, nil
	case "block":
		return Block, nil
	case "error", "fail":
		return Fail, nil
	default:
		return 0, fmt.Errorf("%w: unknown full policy %q", errors.ErrBadParameter, s)
	}
}

// ParseUnderflowPolicy maps the buffer.read.empty_policy vocabulary onto a policy.
func ParseUnderflowPolicy(s string) (UnderflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "return_empty", "do_nothing", "readback":
		return ReturnEmpty, nil
	case "block":
		return WaitForData, nil
	default:
		return 0, fmt.Errorf("%w: unknown empty policy %q", errors.ErrBadParameter, s)
	}
}

// ConfigFromProperties reads the buffer.* keys. Missing keys keep their defaults.
func ConfigFromProperties(props config.Properties) (Config, error) {
	cfg := DefaultConfig()

	length, err := props.Int(PropLength, DefaultLength)
	if err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrBadParameter, err),
			"buffer", "ConfigFromProperties", "parse "+PropLength)
	}
	if length < 1 {
		return cfg, errors.WrapInvalid(
			fmt.Errorf("%w: %s must be >= 1, got %d", errors.ErrBadParameter, PropLength, length),
			"buffer", "ConfigFromProperties", "validate capacity")
	}
	cfg.Length = length

	if cfg.Overflow, err = ParseOverflowPolicy(props.String(PropFullPolicy, "")); err != nil {
		return cfg, errors.WrapInvalid(err, "buffer", "ConfigFromProperties", "parse "+PropFullPolicy)
	}
	if cfg.Underflow, err = ParseUnderflowPolicy(props.String(PropEmptyPolicy, "")); err != nil {
		return cfg, errors.WrapInvalid(err, "buffer", "ConfigFromProperties", "parse "+PropEmptyPolicy)
	}

	if cfg.WriteTimeout, err = props.Seconds(PropWriteTimeout, 0); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrBadParameter, err),
			"buffer", "ConfigFromProperties", "parse "+PropWriteTimeout)
	}
	if cfg.ReadTimeout, err = props.Seconds(PropReadTimeout, 0); err != nil {
		return cfg, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrBadParameter, err),
			"buffer", "ConfigFromProperties", "parse "+PropReadTimeout)
	}

	return cfg, nil
}
