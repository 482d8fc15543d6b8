package port

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/pkg/buffer"
)

// Channel is the transport between a connector's producer and consumer sides.
//
// Push delivers a record to the consumer side. Pull fetches a record from the
// producer side. Implementations report ErrConnectionLost when the other side
// is gone and ErrSendTimeout / ErrRecvTimeout when it is merely slow, and must
// tolerate a caller retrying a push that may already have been delivered.
type Channel interface {
	Push(ctx context.Context, rec Record) error
	Pull(ctx context.Context) (Record, error)
	Close() error
}

// Endpoints is what a transport needs to wire a channel.
type Endpoints struct {
	Profile  ConnectorProfile
	Dataflow DataflowType
	// Producer is the OutPort-side buffer. Pull reads from it.
	Producer buffer.Buffer[Record]
	// Deliver stores a record in the InPort-side buffer. Nil for pull connectors.
	Deliver func(ctx context.Context, rec Record) error
	Logger  *slog.Logger
}

// Transport opens channels. Selected by dataport.interface_type.
type Transport interface {
	Name() string
	Open(ctx context.Context, ep Endpoints) (Channel, error)
}

// TransportRegistry maps interface type names to transports.
type TransportRegistry struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

// NewTransportRegistry returns a registry holding the local transport.
func NewTransportRegistry() *TransportRegistry {
	r := &TransportRegistry{transports: make(map[string]Transport)}
	r.transports[LocalTransportName] = LocalTransport{}
	return r
}

// Register adds t. A name already taken is rejected.
func (r *TransportRegistry) Register(t Transport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transports[t.Name()]; exists {
		return errors.WrapInvalid(fmt.Errorf("%w: transport %s", errors.ErrAlreadyExists, t.Name()),
			"TransportRegistry", "Register", "check duplicate")
	}
	r.transports[t.Name()] = t
	return nil
}

// Get returns the transport registered under name.
func (r *TransportRegistry) Get(name string) (Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.transports[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown interface type %q", errors.ErrBadParameter, name)
	}
	return t, nil
}

// LocalTransportName is the default dataport.interface_type.
const LocalTransportName = "local"

// LocalTransport connects ports in the same process by writing straight into
// the consumer buffer.
type LocalTransport struct{}

// Name returns "local".
func (LocalTransport) Name() string { return LocalTransportName }

// Open returns an in-process channel.
func (LocalTransport) Open(_ context.Context, ep Endpoints) (Channel, error) {
	return &localChannel{ep: ep}, nil
}

type localChannel struct {
	ep     Endpoints
	closed atomic.Bool
}

func (c *localChannel) Push(ctx context.Context, rec Record) error {
	if c.closed.Load() {
		return errors.ErrConnectionLost
	}
	if c.ep.Deliver == nil {
		return errors.WrapInvalid(errors.ErrUnsupported, "localChannel", "Push", "push on pull connector")
	}
	return c.ep.Deliver(ctx, rec)
}

func (c *localChannel) Pull(ctx context.Context) (Record, error) {
	if c.closed.Load() {
		return Record{}, errors.ErrConnectionLost
	}
	rec, err := c.ep.Producer.ReadContext(ctx)
	if err != nil {
		return Record{}, RecvError(err)
	}
	return rec, nil
}

func (c *localChannel) Close() error {
	c.closed.Store(true)
	return nil
}

// SendError maps a consumer buffer failure onto the send side of the port status taxonomy.
func SendError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrBufferFull):
		return fmt.Errorf("%w: %w", errors.ErrSendFull, err)
	case stderrors.Is(err, errors.ErrBufferTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", errors.ErrSendTimeout, err)
	case stderrors.Is(err, errors.ErrBufferClosed):
		return fmt.Errorf("%w: %w", errors.ErrConnectionLost, err)
	default:
		return err
	}
}

// RecvError maps a producer buffer failure onto the receive side of the port status taxonomy.
func RecvError(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, errors.ErrBufferEmpty):
		return fmt.Errorf("%w: %w", errors.ErrRecvEmpty, err)
	case stderrors.Is(err, errors.ErrBufferTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", errors.ErrRecvTimeout, err)
	case stderrors.Is(err, errors.ErrBufferClosed):
		return fmt.Errorf("%w: %w", errors.ErrConnectionLost, err)
	default:
		return err
	}
}
