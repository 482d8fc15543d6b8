package port

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/natsclient"
)

// NATSTransportName is the dataport.interface_type selecting NATS.
const NATSTransportName = "nats"

// DefaultSubjectPrefix prefixes every connector subject.
const DefaultSubjectPrefix = "rtkit.dataport"

// NATSTransport carries records over NATS request/reply. A push connector
// sends each record as a request on "<prefix>.<id>.push" and the consumer
// side answers with the port status of its buffer write. A pull connector
// requests "<prefix>.<id>.pull" and the producer side answers with a record.
type NATSTransport struct {
	client *natsclient.Client
	prefix string
}

// NewNATSTransport returns a transport using client. An empty prefix selects
// DefaultSubjectPrefix.
func NewNATSTransport(client *natsclient.Client, prefix string) *NATSTransport {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSTransport{client: client, prefix: prefix}
}

// Name returns "nats".
func (t *NATSTransport) Name() string { return NATSTransportName }

// Open subscribes the serving side of the connector and returns the channel.
func (t *NATSTransport) Open(_ context.Context, ep Endpoints) (Channel, error) {
	ch := &natsChannel{
		client:  t.client,
		subject: t.prefix + "." + ep.Profile.ID,
		ep:      ep,
	}
	// Subscriptions outlive Open, so they hang off their own context.
	ch.ctx, ch.cancel = context.WithCancel(context.Background())

	var (
		sub *natsclient.Subscription
		err error
	)
	if ep.Dataflow == Push {
		sub, err = t.client.Subscribe(ch.ctx, ch.subject+".push", ch.servePush)
	} else {
		sub, err = t.client.Subscribe(ch.ctx, ch.subject+".pull", ch.servePull)
	}
	if err != nil {
		ch.cancel()
		return nil, errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrConnectionLost, err),
			"NATSTransport", "Open", "subscribe "+ch.subject)
	}
	ch.sub = sub
	return ch, nil
}

// natsEnvelope is the reply body of both subjects.
type natsEnvelope struct {
	Status string  `json:"status"`
	Error  string  `json:"error,omitempty"`
	Record *Record `json:"record,omitempty"`
}

type natsChannel struct {
	client  *natsclient.Client
	subject string
	ep      Endpoints
	sub     *natsclient.Subscription

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closed    atomic.Bool
}

func (c *natsChannel) Push(ctx context.Context, rec Record) error {
	if c.closed.Load() {
		return errors.ErrConnectionLost
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrPortError, err), "natsChannel", "Push", "encode record")
	}
	reply, err := c.client.Request(ctx, c.subject+".push", data)
	if err != nil {
		return requestError(err, errors.ErrSendTimeout, "Push")
	}
	env, err := decodeEnvelope(reply)
	if err != nil {
		return err
	}
	return env.err()
}

func (c *natsChannel) Pull(ctx context.Context) (Record, error) {
	if c.closed.Load() {
		return Record{}, errors.ErrConnectionLost
	}
	reply, err := c.client.Request(ctx, c.subject+".pull", nil)
	if err != nil {
		return Record{}, requestError(err, errors.ErrRecvTimeout, "Pull")
	}
	env, err := decodeEnvelope(reply)
	if err != nil {
		return Record{}, err
	}
	if err := env.err(); err != nil {
		return Record{}, err
	}
	if env.Record == nil {
		return Record{}, fmt.Errorf("%w: pull reply without record", errors.ErrTransport)
	}
	return *env.Record, nil
}

func (c *natsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		if c.sub != nil {
			err = c.sub.Unsubscribe()
		}
	})
	return err
}

// servePush runs on the consumer side: store the record, answer with the status.
func (c *natsChannel) servePush(ctx context.Context, msg *nats.Msg) {
	var rec Record
	if err := json.Unmarshal(msg.Data, &rec); err != nil {
		c.respond(msg, natsEnvelope{Status: errors.PortError.String(), Error: err.Error()})
		return
	}
	c.respond(msg, envelopeFor(c.ep.Deliver(ctx, rec)))
}

// servePull runs on the producer side: read one record under the buffer's
// empty-read policy, bounded by the message context.
func (c *natsChannel) servePull(ctx context.Context, msg *nats.Msg) {
	rec, err := c.ep.Producer.ReadContext(ctx)
	if err != nil {
		c.respond(msg, envelopeFor(RecvError(err)))
		return
	}
	env := envelopeFor(nil)
	env.Record = &rec
	c.respond(msg, env)
}

func (c *natsChannel) respond(msg *nats.Msg, env natsEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.ep.Logger.Error("encode reply failed", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		c.ep.Logger.Debug("reply failed", "subject", msg.Subject, "error", err)
	}
}

func envelopeFor(err error) natsEnvelope {
	env := natsEnvelope{Status: errors.Status(err).String()}
	if err != nil {
		env.Error = err.Error()
	}
	return env
}

func decodeEnvelope(data []byte) (natsEnvelope, error) {
	var env natsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrTransport, err),
			"natsChannel", "decodeEnvelope", "unmarshal reply")
	}
	return env, nil
}

// err rebuilds the remote failure around the sentinel of its status.
func (e natsEnvelope) err() error {
	sentinel := errors.StatusError(errors.ParsePortStatus(e.Status))
	if sentinel == nil {
		return nil
	}
	if e.Error == "" {
		return sentinel
	}
	return fmt.Errorf("%w: remote: %s", sentinel, e.Error)
}

// requestError separates a vanished peer from a slow one.
func requestError(err error, timeout error, op string) error {
	switch {
	case stderrors.Is(err, context.Canceled):
		return err
	case stderrors.Is(err, nats.ErrNoResponders),
		stderrors.Is(err, nats.ErrConnectionClosed),
		stderrors.Is(err, nats.ErrConnectionDraining),
		stderrors.Is(err, natsclient.ErrNotConnected):
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrConnectionLost, err), "natsChannel", op, "request")
	case stderrors.Is(err, nats.ErrTimeout), stderrors.Is(err, context.DeadlineExceeded):
		return errors.WrapTransient(fmt.Errorf("%w: %w", timeout, err), "natsChannel", op, "request")
	default:
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrTransport, err), "natsChannel", op, "request")
	}
}
