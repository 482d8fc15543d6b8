package port

import (
	"encoding/json"
	"fmt"

	"github.com/c360/rtkit/errors"
	"github.com/c360/rtkit/pkg/timestamp"
)

// Record is the unit of data moved between ports: an opaque payload and the
// time it was produced.
type Record struct {
	Timestamp timestamp.Time `json:"tm"`
	Payload   []byte         `json:"data"`
}

// NewRecord stamps payload with the current time.
func NewRecord(payload []byte) Record {
	return Record{Timestamp: timestamp.Now(), Payload: payload}
}

// Clone returns a record that shares no memory with r.
func (r Record) Clone() Record {
	out := Record{Timestamp: r.Timestamp}
	if r.Payload != nil {
		out.Payload = append([]byte(nil), r.Payload...)
	}
	return out
}

// Codec converts between a typed value and a record payload.
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// JSONCodec encodes values with encoding/json.
type JSONCodec[T any] struct{}

// Encode marshals v.
func (JSONCodec[T]) Encode(v T) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WrapInvalid(err, "JSONCodec", "Encode", "marshal")
	}
	return data, nil
}

// Decode unmarshals data.
func (JSONCodec[T]) Decode(data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrPortError, err), "JSONCodec", "Decode", "unmarshal")
	}
	return v, nil
}

// BytesCodec passes payloads through untouched.
type BytesCodec struct{}

// Encode returns v.
func (BytesCodec) Encode(v []byte) ([]byte, error) { return v, nil }

// Decode returns data.
func (BytesCodec) Decode(data []byte) ([]byte, error) { return data, nil }
