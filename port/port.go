// Package port moves timestamped records between components.
//
// An OutPort and an InPort are joined by a connector built from a
// ConnectorProfile. Each connector owns a producer buffer on the OutPort side,
// a Channel selected by dataport.interface_type and, for push connectors, a
// publisher and a consumer buffer on the InPort side:
//
//	OutPort.Write -> producer buffer -> publisher -> Channel.Push -> consumer buffer -> InPort.Read
//
// Pull connectors have no publisher; InPort.Read pulls from the producer buffer
// through the channel.
package port

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/pkg/timestamp"
)

// portBase is the connector table shared by both port directions.
type portBase struct {
	name  string
	props config.Properties
	net   *Network

	mu    sync.RWMutex
	conns []*connector
}

// Name returns the port name.
func (p *portBase) Name() string {
	return p.name
}

// Properties returns a copy of the port's default connector properties.
func (p *portBase) Properties() config.Properties {
	return p.props.Clone()
}

// Connect establishes a connector. The profile must name this port as one of
// its two endpoints.
func (p *portBase) Connect(ctx context.Context, profile ConnectorProfile) (ConnectorProfile, error) {
	for _, name := range profile.Ports {
		if name == p.name {
			return p.net.Connect(ctx, profile)
		}
	}
	return ConnectorProfile{}, errors.WrapInvalid(
		fmt.Errorf("%w: profile does not name port %s", errors.ErrBadParameter, p.name),
		"Port", "Connect", "check endpoints")
}

// Disconnect tears down one of this port's connectors. Ids the port does not
// hold are a no-op.
func (p *portBase) Disconnect(id string) error {
	if !p.holds(id) {
		return nil
	}
	return p.net.Disconnect(id)
}

// DisconnectAll tears down every connector of this port.
func (p *portBase) DisconnectAll() {
	for _, profile := range p.Connectors() {
		_ = p.net.Disconnect(profile.ID)
	}
}

// Connectors returns the profiles in connection order.
func (p *portBase) Connectors() []ConnectorProfile {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ConnectorProfile, 0, len(p.conns))
	for _, c := range p.conns {
		out = append(out, c.profile.Clone())
	}
	return out
}

// IsConnected reports whether the port has at least one connector.
func (p *portBase) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns) > 0
}

func (p *portBase) snapshot() []*connector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*connector(nil), p.conns...)
}

func (p *portBase) holds(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.conns {
		if c.profile.ID == id {
			return true
		}
	}
	return false
}

// hasName reports whether another connector of this port already uses name.
func (p *portBase) hasName(name, id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range p.conns {
		if c.profile.Name == name && c.profile.ID != id {
			return true
		}
	}
	return false
}

func (p *portBase) add(c *connector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conns = append(p.conns, c)
}

func (p *portBase) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.conns {
		if c.profile.ID == id {
			p.conns = append(p.conns[:i], p.conns[i+1:]...)
			return
		}
	}
}

// OutPort is the producing end of zero or more connectors.
type OutPort struct {
	portBase
}

// Write stamps rec if its timestamp is zero and hands a copy to every
// connector. All connectors are attempted; the first error is returned.
// Writing to an unconnected port succeeds and drops the record.
func (p *OutPort) Write(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = timestamp.Now()
	}

	var first error
	for _, c := range p.snapshot() {
		if err := c.write(rec.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// InPort is the consuming end of zero or more connectors.
type InPort struct {
	portBase
}

// IsNew reports whether any connector has a record ready to read.
func (p *InPort) IsNew() bool {
	for _, c := range p.snapshot() {
		if c.readable() > 0 {
			return true
		}
	}
	return false
}

// Read returns the next record without waiting beyond the buffer's own policy.
func (p *InPort) Read() (Record, error) {
	return p.ReadContext(context.Background())
}

// ReadContext returns the next record from the first connector with data.
// A port with a single connector reads through it directly, so a blocking
// empty-read policy waits there bounded by ctx and the read timeout.
func (p *InPort) ReadContext(ctx context.Context) (Record, error) {
	conns := p.snapshot()
	switch len(conns) {
	case 0:
		return Record{}, fmt.Errorf("%w: port %s has no connectors", errors.ErrBufferEmpty, p.name)
	case 1:
		return conns[0].read(ctx)
	}

	for _, c := range conns {
		if c.readable() == 0 {
			continue
		}
		rec, err := c.read(ctx)
		if isEmpty(err) {
			continue
		}
		return rec, err
	}
	return Record{}, fmt.Errorf("%w: port %s", errors.ErrBufferEmpty, p.name)
}

func isEmpty(err error) bool {
	return stderrors.Is(err, errors.ErrBufferEmpty) || stderrors.Is(err, errors.ErrRecvEmpty)
}
