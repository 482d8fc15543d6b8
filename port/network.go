package port

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/metric"
	"github.com/c360/rtkit/pkg/buffer"
	"github.com/c360/rtkit/publisher"
)

// DefaultConnectTimeout bounds transport setup during Connect.
const DefaultConnectTimeout = 5 * time.Second

// Network is the port directory of one runtime. It resolves the endpoint names
// of a ConnectorProfile, builds connectors and tracks them until disconnect.
type Network struct {
	mu         sync.RWMutex
	outPorts   map[string]*OutPort
	inPorts    map[string]*InPort
	connectors map[string]*connector
	listeners  []Listener

	// connectMu serialises connect and disconnect so table checks and
	// registration happen atomically.
	connectMu sync.Mutex

	transports     *TransportRegistry
	logger         *slog.Logger
	metricsReg     *metric.MetricsRegistry
	connectTimeout time.Duration
}

// NetworkOption configures a Network.
type NetworkOption func(*Network)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) NetworkOption {
	return func(n *Network) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithMetrics exports connector, buffer and publisher metrics.
func WithMetrics(registry *metric.MetricsRegistry) NetworkOption {
	return func(n *Network) {
		n.metricsReg = registry
	}
}

// WithTransports replaces the transport registry.
func WithTransports(r *TransportRegistry) NetworkOption {
	return func(n *Network) {
		if r != nil {
			n.transports = r
		}
	}
}

// WithConnectTimeout bounds transport setup. Values <= 0 keep the default.
func WithConnectTimeout(d time.Duration) NetworkOption {
	return func(n *Network) {
		if d > 0 {
			n.connectTimeout = d
		}
	}
}

// NewNetwork creates an empty port directory with the local transport registered.
func NewNetwork(opts ...NetworkOption) *Network {
	n := &Network{
		outPorts:       make(map[string]*OutPort),
		inPorts:        make(map[string]*InPort),
		connectors:     make(map[string]*connector),
		transports:     NewTransportRegistry(),
		logger:         slog.Default(),
		connectTimeout: DefaultConnectTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	n.logger = n.logger.With("component", "port-network")
	return n
}

// Transports returns the transport registry.
func (n *Network) Transports() *TransportRegistry {
	return n.transports
}

// AddListener registers l for every connector event in this network.
func (n *Network) AddListener(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// NewOutPort registers an output port. Port names are unique across both directions.
func (n *Network) NewOutPort(name string, props config.Properties) (*OutPort, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkPortNameLocked(name); err != nil {
		return nil, errors.WrapInvalid(err, "Network", "NewOutPort", "register port")
	}
	p := &OutPort{portBase: portBase{name: name, props: props.Clone(), net: n}}
	n.outPorts[name] = p
	return p, nil
}

// NewInPort registers an input port. Port names are unique across both directions.
func (n *Network) NewInPort(name string, props config.Properties) (*InPort, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkPortNameLocked(name); err != nil {
		return nil, errors.WrapInvalid(err, "Network", "NewInPort", "register port")
	}
	p := &InPort{portBase: portBase{name: name, props: props.Clone(), net: n}}
	n.inPorts[name] = p
	return p, nil
}

func (n *Network) checkPortNameLocked(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty port name", errors.ErrBadParameter)
	}
	_, isOut := n.outPorts[name]
	_, isIn := n.inPorts[name]
	if isOut || isIn {
		return fmt.Errorf("%w: port %s: %w", errors.ErrBadParameter, name, errors.ErrAlreadyExists)
	}
	return nil
}

// RemovePort disconnects every connector of the named port and forgets it.
// Unknown names are ignored.
func (n *Network) RemovePort(name string) {
	n.mu.Lock()
	var p *portBase
	if out, ok := n.outPorts[name]; ok {
		p = &out.portBase
		delete(n.outPorts, name)
	} else if in, ok := n.inPorts[name]; ok {
		p = &in.portBase
		delete(n.inPorts, name)
	}
	n.mu.Unlock()

	if p != nil {
		p.DisconnectAll()
	}
}

// Ports returns the names of all registered ports, sorted.
func (n *Network) Ports() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	names := make([]string, 0, len(n.outPorts)+len(n.inPorts))
	for name := range n.outPorts {
		names = append(names, name)
	}
	for name := range n.inPorts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connectors returns the profiles of all live connectors, sorted by id.
func (n *Network) Connectors() []ConnectorProfile {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]ConnectorProfile, 0, len(n.connectors))
	for _, c := range n.connectors {
		out = append(out, c.profile.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Connector returns the profile of a live connector.
func (n *Network) Connector(id string) (ConnectorProfile, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	c, ok := n.connectors[id]
	if !ok {
		return ConnectorProfile{}, false
	}
	return c.profile.Clone(), true
}

// Connect establishes the connection described by profile and returns the
// completed profile (generated id, default name, effective properties).
//
// A profile whose id is already connected between the same ports is a no-op.
func (n *Network) Connect(ctx context.Context, profile ConnectorProfile) (ConnectorProfile, error) {
	n.connectMu.Lock()
	defer n.connectMu.Unlock()

	out, in, err := n.resolve(profile)
	if err != nil {
		return ConnectorProfile{}, errors.WrapInvalid(err, "Network", "Connect", "resolve endpoints")
	}

	if profile.ID != "" {
		if existing, ok := n.Connector(profile.ID); ok {
			if existing.samePorts(profile) {
				return existing, nil
			}
			return ConnectorProfile{}, errors.WrapInvalid(
				fmt.Errorf("%w: connector %s already connects %v", errors.ErrBadParameter, profile.ID, existing.Ports),
				"Network", "Connect", "check id")
		}
	}

	completed := profile.Clone()
	if completed.ID == "" {
		completed.ID = uuid.NewString()
	}
	if completed.Name == "" {
		completed.Name = completed.ID
	}
	if out.hasName(completed.Name, completed.ID) || in.hasName(completed.Name, completed.ID) {
		return ConnectorProfile{}, errors.WrapInvalid(
			fmt.Errorf("%w: connector name %q already in use", errors.ErrBadParameter, completed.Name),
			"Network", "Connect", "check name")
	}

	if dt, it := out.props.String(PropDataType, ""), in.props.String(PropDataType, ""); dt != "" && it != "" && dt != it {
		return ConnectorProfile{}, errors.WrapInvalid(
			fmt.Errorf("%w: data type mismatch %s -> %s", errors.ErrBadParameter, dt, it),
			"Network", "Connect", "check data type")
	}
	completed.Properties = out.props.Merge(in.props).Merge(profile.Properties)

	c, err := n.build(ctx, completed, out, in)
	if err != nil {
		return ConnectorProfile{}, err
	}

	n.mu.Lock()
	n.connectors[c.profile.ID] = c
	count := len(n.connectors)
	n.mu.Unlock()
	out.add(c)
	in.add(c)

	n.recordCount(count)
	n.logger.Info("connector established",
		"connector", c.profile.ID,
		"name", c.profile.Name,
		"ports", c.profile.Ports,
		"dataflow", c.dataflow.String())
	n.notify(func(l Listener) { l.OnConnect(c.profile.Clone()) })

	return c.profile.Clone(), nil
}

// resolve finds exactly one OutPort and one InPort among the profile's endpoints.
func (n *Network) resolve(profile ConnectorProfile) (*OutPort, *InPort, error) {
	if len(profile.Ports) != 2 {
		return nil, nil, fmt.Errorf("%w: a connector needs exactly 2 ports, got %d", errors.ErrBadParameter, len(profile.Ports))
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	var out *OutPort
	var in *InPort
	for _, name := range profile.Ports {
		if p, ok := n.outPorts[name]; ok && out == nil {
			out = p
			continue
		}
		if p, ok := n.inPorts[name]; ok && in == nil {
			in = p
			continue
		}
		return nil, nil, fmt.Errorf("%w: port %q is unknown or repeats a direction", errors.ErrBadParameter, name)
	}
	return out, in, nil
}

// build constructs buffers, channel and publisher for a validated profile.
func (n *Network) build(ctx context.Context, profile ConnectorProfile, out *OutPort, in *InPort) (*connector, error) {
	props := profile.Properties

	dataflow, err := ParseDataflowType(props.String(PropDataflowType, ""))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Network", "Connect", "parse "+PropDataflowType)
	}
	pubCfg, err := publisher.ConfigFromProperties(props)
	if err != nil {
		return nil, err
	}
	outCfg, err := buffer.ConfigFromProperties(props.Merge(props.Sub("outport")))
	if err != nil {
		return nil, err
	}
	inCfg, err := buffer.ConfigFromProperties(props.Merge(props.Sub("inport")))
	if err != nil {
		return nil, err
	}
	transport, err := n.transports.Get(props.String(PropInterfaceType, LocalTransportName))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Network", "Connect", "select transport")
	}

	c := &connector{
		net:      n,
		profile:  profile,
		dataflow: dataflow,
		out:      out,
		in:       in,
		logger:   n.logger.With("connector", profile.ID),
	}

	overflow := func(rec Record) {
		n.notify(func(l Listener) { l.OnBufferOverflow(c.profile, rec) })
	}

	c.outBuf, err = buffer.NewRingBuffer[Record](outCfg.Length,
		buffer.WithConfig[Record](outCfg),
		buffer.WithDropCallback[Record](overflow),
		buffer.WithMetrics[Record](n.metricsReg, "connector."+profile.ID+".out"))
	if err != nil {
		return nil, err
	}
	if dataflow == Push {
		c.inBuf, err = buffer.NewRingBuffer[Record](inCfg.Length,
			buffer.WithConfig[Record](inCfg),
			buffer.WithDropCallback[Record](overflow),
			buffer.WithMetrics[Record](n.metricsReg, "connector."+profile.ID+".in"))
		if err != nil {
			_ = c.outBuf.Close()
			return nil, err
		}
	}

	ep := Endpoints{
		Profile:  profile.Clone(),
		Dataflow: dataflow,
		Producer: c.outBuf,
		Logger:   c.logger,
	}
	if dataflow == Push {
		ep.Deliver = c.deliver
	}

	openCtx, cancel := context.WithTimeout(ctx, n.connectTimeout)
	defer cancel()
	c.channel, err = transport.Open(openCtx, ep)
	if err != nil {
		c.closeBuffers()
		return nil, errors.WrapTransient(err, "Network", "Connect", "open "+transport.Name()+" channel")
	}

	if dataflow == Push {
		c.pub, err = publisher.New(pubCfg, c.outBuf, publisher.Consumer[Record](c.channel),
			publisher.WithName(profile.ID),
			publisher.WithLogger(c.logger),
			publisher.WithMetrics(n.metricsReg),
			publisher.WithErrorHandler(func(err error) { n.handlePushError(c, err) }))
		if err != nil {
			_ = c.channel.Close()
			c.closeBuffers()
			return nil, err
		}
	}
	return c, nil
}

func (c *connector) closeBuffers() {
	_ = c.outBuf.Close()
	if c.inBuf != nil {
		_ = c.inBuf.Close()
	}
}

// handlePushError reports a failed push. A lost connection tears the connector
// down on its own goroutine because the publisher is still inside the push.
func (n *Network) handlePushError(c *connector, err error) {
	n.notify(func(l Listener) { l.OnSendError(c.profile, err) })
	if !errors.IsConnectionLost(err) {
		return
	}
	if n.metricsReg != nil {
		n.metricsReg.CoreMetrics().RecordConnectionLost()
	}
	c.logger.Warn("connection lost, disconnecting", "error", err)
	go func() {
		_ = n.disconnect(c.profile.ID, err)
	}()
}

// Disconnect tears down a connector. Unknown ids are a no-op.
func (n *Network) Disconnect(id string) error {
	return n.disconnect(id, nil)
}

func (n *Network) disconnect(id string, reason error) error {
	n.connectMu.Lock()
	n.mu.Lock()
	c, ok := n.connectors[id]
	if ok {
		delete(n.connectors, id)
	}
	count := len(n.connectors)
	n.mu.Unlock()
	if ok {
		c.out.remove(id)
		c.in.remove(id)
	}
	n.connectMu.Unlock()

	if !ok {
		return nil
	}

	c.close()
	n.recordCount(count)
	c.logger.Info("connector closed", "reason", reason)
	n.notify(func(l Listener) { l.OnDisconnect(c.profile.Clone(), reason) })
	return nil
}

// DisconnectAll tears down every connector in the network.
func (n *Network) DisconnectAll() {
	for _, p := range n.Connectors() {
		_ = n.Disconnect(p.ID)
	}
}

func (n *Network) recordCount(count int) {
	if n.metricsReg != nil {
		n.metricsReg.CoreMetrics().RecordConnectorCount(count)
	}
}

func (n *Network) notify(fn func(Listener)) {
	n.mu.RLock()
	listeners := append([]Listener(nil), n.listeners...)
	n.mu.RUnlock()

	for _, l := range listeners {
		fn(l)
	}
}
