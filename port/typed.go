package port

import (
	"context"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/pkg/timestamp"
)

// TypedOutPort encodes values with a Codec before writing them.
type TypedOutPort[T any] struct {
	*OutPort
	codec Codec[T]
}

// NewTypedOutPort wraps p. A nil codec selects JSONCodec.
func NewTypedOutPort[T any](p *OutPort, codec Codec[T]) *TypedOutPort[T] {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	return &TypedOutPort[T]{OutPort: p, codec: codec}
}

// WriteValue encodes v and writes it stamped with the current time.
func (p *TypedOutPort[T]) WriteValue(v T) error {
	return p.WriteValueAt(v, timestamp.Now())
}

// WriteValueAt encodes v and writes it with the given timestamp.
func (p *TypedOutPort[T]) WriteValueAt(v T, tm timestamp.Time) error {
	data, err := p.codec.Encode(v)
	if err != nil {
		return errors.Wrap(err, "TypedOutPort", "WriteValue", "encode")
	}
	return p.Write(Record{Timestamp: tm, Payload: data})
}

// TypedInPort decodes records read from an InPort.
type TypedInPort[T any] struct {
	*InPort
	codec Codec[T]
}

// NewTypedInPort wraps p. A nil codec selects JSONCodec.
func NewTypedInPort[T any](p *InPort, codec Codec[T]) *TypedInPort[T] {
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	return &TypedInPort[T]{InPort: p, codec: codec}
}

// ReadValue reads and decodes the next record.
func (p *TypedInPort[T]) ReadValue(ctx context.Context) (T, timestamp.Time, error) {
	var zero T
	rec, err := p.ReadContext(ctx)
	if err != nil {
		return zero, timestamp.Time{}, err
	}
	v, err := p.codec.Decode(rec.Payload)
	if err != nil {
		return zero, rec.Timestamp, err
	}
	return v, rec.Timestamp, nil
}
