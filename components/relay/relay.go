// Package relay provides a component that forwards records from its input
// port to its output port, keeping their timestamps.
package relay

import (
	"context"
	stderrors "errors"
	"sync/atomic"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/port"
)

// TypeName is the factory name.
const TypeName = "relay"

// Relay moves up to batch records per round from in to out. Records whose
// write fails are counted as dropped. With fail_on_drop set, a dropped record
// fails OnExecute and puts the relay into the error state.
type Relay struct {
	inName, outName string
	batch           int
	failOnDrop      bool

	in  *port.InPort
	out *port.OutPort

	forwarded atomic.Int64
	dropped   atomic.Int64
	resets    atomic.Int64
}

// OnInitialize creates both ports.
func (r *Relay) OnInitialize(_ context.Context, obj *component.RTObject) error {
	in, err := obj.NewInPort(r.inName, nil)
	if err != nil {
		return err
	}
	out, err := obj.NewOutPort(r.outName, nil)
	if err != nil {
		return err
	}
	r.in, r.out = in, out
	return nil
}

// OnExecute forwards the available records.
func (r *Relay) OnExecute(ctx context.Context, _ component.Handle) error {
	for n := 0; n < r.batch && r.in.IsNew(); n++ {
		rec, err := r.in.ReadContext(ctx)
		if err != nil {
			if stderrors.Is(err, errors.ErrBufferEmpty) || stderrors.Is(err, errors.ErrRecvEmpty) {
				return nil
			}
			return err
		}
		if err := r.out.Write(rec); err != nil {
			r.dropped.Add(1)
			if r.failOnDrop {
				return errors.WrapTransient(err, "Relay", "OnExecute", "forward record")
			}
			continue
		}
		r.forwarded.Add(1)
	}
	return nil
}

// OnReset clears the drop counter.
func (r *Relay) OnReset(context.Context, component.Handle) error {
	r.dropped.Store(0)
	r.resets.Add(1)
	return nil
}

// Forwarded returns the number of records written.
func (r *Relay) Forwarded() int64 { return r.forwarded.Load() }

// Dropped returns the number of records lost since the last reset.
func (r *Relay) Dropped() int64 { return r.dropped.Load() }

// Resets returns how often OnReset ran.
func (r *Relay) Resets() int64 { return r.resets.Load() }

// Register registers the relay factory. Properties: in (default "in"),
// out (default "out"), batch (default 64) and fail_on_drop.
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        TypeName,
		Category:    "filter",
		Description: "Forwards records from its input port to its output port",
		Version:     "1.0.0",
		Defaults:    config.Properties{"in": "in", "out": "out", "batch": "64"},
		Factory: func(props config.Properties, _ component.Dependencies) (any, error) {
			batch, err := props.Int("batch", 64)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Relay", "Factory", "parse batch")
			}
			if batch < 1 {
				return nil, errors.WrapInvalid(errors.ErrBadParameter, "Relay", "Factory", "batch must be positive")
			}
			failOnDrop, err := props.Bool("fail_on_drop", false)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Relay", "Factory", "parse fail_on_drop")
			}
			return &Relay{
				inName:     props.String("in", "in"),
				outName:    props.String("out", "out"),
				batch:      batch,
				failOnDrop: failOnDrop,
			}, nil
		},
	})
}
