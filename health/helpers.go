package health

import (
	"sort"
	"time"
)

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return newStatus(component, StatusHealthy, message)
}

// NewUnhealthy creates an unhealthy status. The message is sanitized.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StatusUnhealthy, sanitizeErrorMessage(message))
}

// NewDegraded creates a degraded status. The message is sanitized.
func NewDegraded(component, message string) Status {
	return newStatus(component, StatusDegraded, sanitizeErrorMessage(message))
}

func newStatus(component, status, message string) Status {
	return Status{
		Component: component,
		Healthy:   status == StatusHealthy,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Aggregate rolls sub-statuses up: any unhealthy makes the aggregate
// unhealthy, otherwise any degraded makes it degraded. Sub-statuses are
// copied and sorted by component.
func Aggregate(component string, subs []Status) Status {
	if len(subs) == 0 {
		return NewHealthy(component, "nothing to report")
	}

	unhealthy, degraded := 0, 0
	for _, sub := range subs {
		switch {
		case sub.IsUnhealthy():
			unhealthy++
		case sub.IsDegraded():
			degraded++
		}
	}

	var status Status
	switch {
	case unhealthy > 0:
		status = NewUnhealthy(component, "one or more parts are unhealthy")
	case degraded > 0:
		status = NewDegraded(component, "one or more parts are degraded")
	default:
		status = NewHealthy(component, "all parts are healthy")
	}

	status.SubStatuses = make([]Status, len(subs))
	copy(status.SubStatuses, subs)
	sort.SliceStable(status.SubStatuses, func(i, j int) bool {
		return status.SubStatuses[i].Component < status.SubStatuses[j].Component
	})
	return status
}
