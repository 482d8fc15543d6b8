// Package console provides a sink that drains its input port every round and
// logs what it read.
package console

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/port"
)

// TypeName is the factory name.
const TypeName = "console"

// Modes accepted by OnModeChanged.
const (
	ModeVerbose = "verbose"
	ModeQuiet   = "quiet"
)

// Console reads every available record on OnExecute. In verbose mode each
// record is logged at info level; in quiet mode only counted.
type Console struct {
	portName string
	maxRead  int
	history  int

	in  *port.InPort
	log *component.Logger

	mu       sync.Mutex
	verbose  bool
	received int64
	recent   []port.Record
}

// New creates a console reading from portName. maxRead bounds the records
// read per round (0 reads all); history is the number of recent records kept.
func New(portName string, maxRead, history int, verbose bool) *Console {
	return &Console{portName: portName, maxRead: maxRead, history: history, verbose: verbose}
}

// OnInitialize creates the input port.
func (c *Console) OnInitialize(_ context.Context, obj *component.RTObject) error {
	p, err := obj.NewInPort(c.portName, nil)
	if err != nil {
		return err
	}
	c.in = p
	c.log = obj.Logger()
	return nil
}

// OnExecute drains the input port.
func (c *Console) OnExecute(ctx context.Context, _ component.Handle) error {
	for n := 0; c.maxRead == 0 || n < c.maxRead; n++ {
		if !c.in.IsNew() {
			return nil
		}
		rec, err := c.in.ReadContext(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrBufferEmpty) || stderrors.Is(err, errors.ErrRecvEmpty) {
				return nil
			}
			c.log.Warn("read failed", "port", c.in.Name(), "status", errors.Status(err).String())
			return nil
		}
		c.record(rec)
	}
	return nil
}

func (c *Console) record(rec port.Record) {
	c.mu.Lock()
	c.received++
	if c.history > 0 {
		c.recent = append(c.recent, rec)
		if len(c.recent) > c.history {
			c.recent = c.recent[len(c.recent)-c.history:]
		}
	}
	verbose := c.verbose
	c.mu.Unlock()

	if verbose {
		c.log.Info("record", "tm", rec.Timestamp.String(), "data", string(rec.Payload))
	}
}

// OnModeChanged switches between verbose and quiet output.
func (c *Console) OnModeChanged(_ context.Context, _ component.Handle, mode string) error {
	switch mode {
	case ModeVerbose, ModeQuiet:
	default:
		return fmt.Errorf("%w: mode %q", errors.ErrBadParameter, mode)
	}
	c.mu.Lock()
	c.verbose = mode == ModeVerbose
	c.mu.Unlock()
	return nil
}

// Received returns the number of records read.
func (c *Console) Received() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

// Recent returns copies of the most recent records, oldest first.
func (c *Console) Recent() []port.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]port.Record, len(c.recent))
	for i, rec := range c.recent {
		out[i] = rec.Clone()
	}
	return out
}

// Register registers the console factory. Properties: port (default "in"),
// max_per_round, history (default 16) and verbose.
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        TypeName,
		Category:    "sink",
		Description: "Drains its input port every round and logs the records",
		Version:     "1.0.0",
		Defaults:    config.Properties{"port": "in", "history": "16"},
		Factory: func(props config.Properties, _ component.Dependencies) (any, error) {
			maxRead, err := props.Int("max_per_round", 0)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Console", "Factory", "parse max_per_round")
			}
			history, err := props.Int("history", 16)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Console", "Factory", "parse history")
			}
			verbose, err := props.Bool("verbose", false)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Console", "Factory", "parse verbose")
			}
			if maxRead < 0 || history < 0 {
				return nil, errors.WrapInvalid(errors.ErrBadParameter, "Console", "Factory", "negative limit")
			}
			return New(props.String("port", "in"), maxRead, history, verbose), nil
		},
	})
}
