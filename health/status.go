package health

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/execution"
)

// Status levels.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

var (
	urlRegex        = regexp.MustCompile(`(?:https?|nats|tls|wss?)://[^\s]+`)
	unixPathRegex   = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	ipAddrRegex     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex       = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex = regexp.MustCompile(`(?i)(password|token|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status is the health of one component, execution context or subsystem.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool { return s.Status == StatusHealthy }

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool { return s.Status == StatusDegraded }

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool { return s.Status == StatusUnhealthy }

// WithSubStatus returns a copy with sub appended. The receiver's slice is
// never shared with the result.
func (s Status) WithSubStatus(sub Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, sub)
	return s
}

// sanitizeErrorMessage strips URLs, paths, addresses and credentials from
// messages that end up on the unauthenticated health endpoint.
func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	msg = unixPathRegex.ReplaceAllString(msg, "[PATH]")
	msg = ipAddrRegex.ReplaceAllString(msg, "[IP]")
	msg = portRegex.ReplaceAllString(msg, "[PORT]")
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "password") || strings.Contains(lower, "token") ||
		strings.Contains(lower, "secret") || strings.Contains(lower, "credential") {
		msg = credentialRegex.ReplaceAllString(msg, "[REDACTED]")
	}
	return msg
}

// FromComponent derives a status from a component snapshot. A component in
// Error in any context, or one that has exited, is unhealthy; one that was
// never initialized is degraded.
func FromComponent(info component.Info) Status {
	var failed []string
	for _, c := range info.Contexts {
		if c.State == component.StateError.String() {
			failed = append(failed, c.ID)
		}
	}

	name := "component." + info.Name
	switch {
	case len(failed) > 0:
		return NewUnhealthy(name, fmt.Sprintf("error in %s", strings.Join(failed, ", ")))
	case info.State == component.StateExiting.String():
		return NewUnhealthy(name, "exited")
	case info.State == component.StateCreated.String():
		return NewDegraded(name, "not initialized")
	case len(info.Contexts) == 0:
		return NewHealthy(name, "alive, no execution context")
	}

	active := 0
	for _, c := range info.Contexts {
		if c.State == component.StateActive.String() {
			active++
		}
	}
	return NewHealthy(name, fmt.Sprintf("active in %d of %d contexts", active, len(info.Contexts)))
}

// FromContext derives a status from an execution context snapshot. A stopped
// context with attached components is degraded.
func FromContext(p execution.Profile) Status {
	name := "ec." + p.ID
	attached := len(p.Participants)
	if p.Owner != "" {
		attached++
	}
	if !p.Running {
		if attached > 0 {
			return NewDegraded(name, fmt.Sprintf("stopped with %d components attached", attached))
		}
		return NewHealthy(name, "stopped")
	}
	return NewHealthy(name, fmt.Sprintf("running, %d rounds", p.Rounds))
}
