// Package sequencer provides a data source that writes an increasing sequence
// of samples, one per execution round.
package sequencer

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360/rtkit/component"
	"github.com/c360/rtkit/config"
	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/port"
)

// TypeName is the factory name.
const TypeName = "sequencer"

// Sample is the value written on the output port.
type Sample struct {
	Seq   int64   `json:"seq"`
	Value float64 `json:"value"`
}

// Config is read from the instance properties:
//
//	port   output port name (default "out")
//	start  first sequence number (default 0)
//	step   increment per round (default 1)
//	count  samples to write before going idle, 0 for unlimited
//	scale  Value = Seq * scale (default 1)
type Config struct {
	Port  string
	Start int64
	Step  int64
	Count int64
	Scale float64
}

// ConfigFromProperties parses props.
func ConfigFromProperties(props config.Properties) (Config, error) {
	cfg := Config{Port: props.String("port", "out")}
	start, err := props.Int("start", 0)
	if err != nil {
		return cfg, err
	}
	step, err := props.Int("step", 1)
	if err != nil {
		return cfg, err
	}
	count, err := props.Int("count", 0)
	if err != nil {
		return cfg, err
	}
	if count < 0 {
		return cfg, fmt.Errorf("%w: count %d is negative", errors.ErrBadParameter, count)
	}
	if cfg.Scale, err = props.Float("scale", 1); err != nil {
		return cfg, err
	}
	cfg.Start, cfg.Step, cfg.Count = int64(start), int64(step), int64(count)
	return cfg, nil
}

// Sequencer writes one Sample per OnExecute while active.
type Sequencer struct {
	cfg Config
	out *port.TypedOutPort[Sample]
	log *component.Logger

	mu      sync.Mutex
	next    int64
	written int64
	dropped int64
}

// New creates a sequencer from cfg.
func New(cfg Config) *Sequencer {
	return &Sequencer{cfg: cfg, next: cfg.Start}
}

// OnInitialize creates the output port.
func (s *Sequencer) OnInitialize(_ context.Context, obj *component.RTObject) error {
	p, err := obj.NewOutPort(s.cfg.Port, nil)
	if err != nil {
		return err
	}
	s.out = port.NewTypedOutPort[Sample](p, nil)
	s.log = obj.Logger()
	return nil
}

// OnActivated restarts the sequence.
func (s *Sequencer) OnActivated(context.Context, component.Handle) error {
	s.mu.Lock()
	s.next = s.cfg.Start
	s.written = 0
	s.mu.Unlock()
	return nil
}

// OnExecute writes the next sample. A full or failing connector drops the
// sample; the sequence still advances.
func (s *Sequencer) OnExecute(context.Context, component.Handle) error {
	s.mu.Lock()
	if s.cfg.Count > 0 && s.written >= s.cfg.Count {
		s.mu.Unlock()
		return nil
	}
	sample := Sample{Seq: s.next, Value: float64(s.next) * s.cfg.Scale}
	s.next += s.cfg.Step
	s.written++
	s.mu.Unlock()

	if err := s.out.WriteValue(sample); err != nil {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.log.Warn("sample dropped", "seq", sample.Seq, "status", errors.Status(err).String())
	}
	return nil
}

// Stats returns the samples written and dropped since activation.
func (s *Sequencer) Stats() (written, dropped int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, s.dropped
}

// Register registers the sequencer factory.
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        TypeName,
		Category:    "source",
		Description: "Writes an increasing sequence of samples, one per round",
		Version:     "1.0.0",
		Defaults:    config.Properties{"port": "out", "step": "1"},
		Factory: func(props config.Properties, _ component.Dependencies) (any, error) {
			cfg, err := ConfigFromProperties(props)
			if err != nil {
				return nil, errors.WrapInvalid(err, "Sequencer", "Factory", "parse properties")
			}
			return New(cfg), nil
		},
	})
}
