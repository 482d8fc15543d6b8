package port

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/rtkit/pkg/buffer"
	"github.com/c360/rtkit/publisher"
)

// connector is one live connection. It owns the producer buffer, the optional
// publisher, the channel and, for push connectors, the consumer buffer.
type connector struct {
	net      *Network
	profile  ConnectorProfile
	dataflow DataflowType
	out      *OutPort
	in       *InPort
	logger   *slog.Logger

	outBuf  buffer.Buffer[Record]
	inBuf   buffer.Buffer[Record] // nil for pull connectors
	channel Channel
	pub     publisher.Publisher // nil for pull connectors

	closeOnce sync.Once
}

// write stores rec in the producer buffer and signals the publisher.
func (c *connector) write(rec Record) error {
	if err := c.outBuf.Write(rec); err != nil {
		return err
	}
	if c.pub != nil {
		return c.pub.Update()
	}
	return nil
}

// deliver is the consumer side of a push connector, called by the channel.
func (c *connector) deliver(ctx context.Context, rec Record) error {
	if err := c.inBuf.WriteContext(ctx, rec); err != nil {
		return SendError(err)
	}
	c.net.notify(func(l Listener) { l.OnReceive(c.profile, rec) })
	return nil
}

func (c *connector) read(ctx context.Context) (Record, error) {
	if c.dataflow == Pull {
		rec, err := c.channel.Pull(ctx)
		if err != nil {
			return Record{}, err
		}
		c.net.notify(func(l Listener) { l.OnReceive(c.profile, rec) })
		return rec, nil
	}
	return c.inBuf.ReadContext(ctx)
}

func (c *connector) readable() int {
	if c.dataflow == Pull {
		return c.outBuf.Readable()
	}
	return c.inBuf.Readable()
}

// close releases the publisher first so no push is in flight when the
// channel and buffers go away.
func (c *connector) close() {
	c.closeOnce.Do(func() {
		if c.pub != nil {
			c.pub.Release()
		}
		if err := c.channel.Close(); err != nil {
			c.logger.Debug("channel close failed", "error", err)
		}
		_ = c.outBuf.Close()
		if c.inBuf != nil {
			_ = c.inBuf.Close()
		}
	})
}
