package component

import (
	"fmt"
	"strings"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// Limits applied to names and instance properties.
const (
	MaxNameLength    = 128
	MaxStringLength  = 4096
	MaxPropertyCount = 512
)

// ValidateName checks a component or factory name. Names may contain letters,
// digits, dash and underscore; dots are reserved as the port name separator.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", errors.ErrBadParameter)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name longer than %d", errors.ErrBadParameter, MaxNameLength)
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_') {
			return fmt.Errorf("%w: invalid character %q in name %q", errors.ErrBadParameter, r, name)
		}
	}
	return nil
}

// ValidateProperties rejects oversized property maps and values carrying
// control characters.
func ValidateProperties(props config.Properties) error {
	if len(props) > MaxPropertyCount {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %d properties exceeds maximum %d", errors.ErrBadParameter, len(props), MaxPropertyCount),
			"ConfigValidator", "ValidateProperties", "size check")
	}
	for _, key := range props.Keys() {
		if err := validateStringContent(key); err != nil {
			return errors.WrapInvalid(err, "ConfigValidator", "ValidateProperties", "key "+key)
		}
		val := props[key]
		if len(val) > MaxStringLength {
			return errors.WrapInvalid(
				fmt.Errorf("%w: value of %s exceeds %d bytes", errors.ErrBadParameter, key, MaxStringLength),
				"ConfigValidator", "ValidateProperties", "value length check")
		}
		if err := validateStringContent(val); err != nil {
			return errors.WrapInvalid(err, "ConfigValidator", "ValidateProperties", "value of "+key)
		}
	}
	return nil
}

// validateStringContent checks for dangerous patterns in strings
func validateStringContent(s string) error {
	if strings.Contains(s, "\x00") {
		return fmt.Errorf("%w: string contains null byte", errors.ErrBadParameter)
	}

	// Control characters other than \n, \r and \t are rejected
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return fmt.Errorf("%w: string contains control character 0x%02x", errors.ErrBadParameter, r)
		}
	}
	return nil
}
