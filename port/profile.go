package port

import (
	"fmt"
	"strings"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
)

// Property keys read at connect time, in addition to the publisher.* and buffer.* keys.
const (
	PropDataflowType  = "dataport.dataflow_type"
	PropInterfaceType = "dataport.interface_type"
	PropDataType      = "dataport.data_type"
)

// ConnectorProfile describes one connection between an OutPort and an InPort.
type ConnectorProfile struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Ports      []string          `json:"ports"`
	Properties config.Properties `json:"properties,omitempty"`
}

// Clone returns a deep copy.
func (p ConnectorProfile) Clone() ConnectorProfile {
	out := p
	out.Ports = append([]string(nil), p.Ports...)
	if p.Properties != nil {
		out.Properties = p.Properties.Clone()
	}
	return out
}

// samePorts reports whether both profiles name the same endpoints, in any order.
func (p ConnectorProfile) samePorts(other ConnectorProfile) bool {
	if len(p.Ports) != len(other.Ports) {
		return false
	}
	seen := make(map[string]int, len(p.Ports))
	for _, name := range p.Ports {
		seen[name]++
	}
	for _, name := range other.Ports {
		if seen[name] == 0 {
			return false
		}
		seen[name]--
	}
	return true
}

// DataflowType selects who drives delivery.
type DataflowType int

const (
	// Push delivery is driven by the producer's publisher.
	Push DataflowType = iota
	// Pull delivery is driven by the consumer reading through the channel.
	Pull
)

func (d DataflowType) String() string {
	if d == Pull {
		return "pull"
	}
	return "push"
}

// ParseDataflowType maps a dataport.dataflow_type value onto a DataflowType.
func ParseDataflowType(s string) (DataflowType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "push":
		return Push, nil
	case "pull":
		return Pull, nil
	default:
		return 0, fmt.Errorf("%w: unknown dataflow type %q", errors.ErrBadParameter, s)
	}
}
