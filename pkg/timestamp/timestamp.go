// Package timestamp provides the {sec, nsec} timestamp carried by every data record.
//
// Zero Value Semantics:
//   - A Time with Sec == 0 and Nsec == 0 means "not set"
//   - Functions handle zero values gracefully, returning appropriate defaults
//
// Usage Examples:
//
//	// Stamp a record with the current time
//	ts := timestamp.Now()
//
//	// Convert to and from time.Time
//	t := ts.Time()
//	ts = timestamp.From(t)
//
//	// Format for display
//	display := timestamp.Format(ts)
package timestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Time is a wall-clock instant split into whole seconds and nanoseconds.
type Time struct {
	Sec  int64 `json:"sec"`
	Nsec int32 `json:"nsec"`
}

// Now returns the current time.
func Now() Time {
	return From(time.Now())
}

// From converts a time.Time. The zero time maps to the zero Time.
func From(t time.Time) Time {
	if t.IsZero() {
		return Time{}
	}
	return Time{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}

// IsZero reports whether the timestamp is unset.
func (t Time) IsZero() bool {
	return t.Sec == 0 && t.Nsec == 0
}

// Time converts to time.Time. Returns zero time if unset.
func (t Time) Time() time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Unix(t.Sec, int64(t.Nsec))
}

// UnixNano returns the timestamp as nanoseconds since the epoch.
func (t Time) UnixNano() int64 {
	return t.Sec*int64(time.Second) + int64(t.Nsec)
}

// Before reports whether t is earlier than u.
func (t Time) Before(u Time) bool {
	if t.Sec != u.Sec {
		return t.Sec < u.Sec
	}
	return t.Nsec < u.Nsec
}

// Since returns the time elapsed since t.
func Since(t Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	return time.Since(t.Time())
}

// Format renders t as RFC3339 with nanoseconds. Returns empty string if unset.
func Format(t Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Time().UTC().Format(time.RFC3339Nano)
}

// String implements fmt.Stringer as "sec.nsec".
func (t Time) String() string {
	return fmt.Sprintf("%d.%09d", t.Sec, t.Nsec)
}

// Parse accepts RFC3339 strings and "sec.nsec" strings.
func Parse(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return From(parsed), nil
	}

	secPart, nsecPart, found := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	if !found {
		return Time{Sec: sec}, nil
	}
	if len(nsecPart) > 9 {
		nsecPart = nsecPart[:9]
	}
	nsecPart += strings.Repeat("0", 9-len(nsecPart))
	nsec, err := strconv.ParseInt(nsecPart, 10, 32)
	if err != nil {
		return Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return Time{Sec: sec, Nsec: int32(nsec)}, nil
}
