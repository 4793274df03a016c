package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/walletcore/pkg/enums"
)

// ErrUnknownVersion is returned for an envelope version no decoder handles.
var ErrUnknownVersion = errors.New("unknown payload version")

// Decoders turns the versioned payloads of one event type into T. It is
// built once at startup and only read afterwards, so it needs no locking.
type Decoders[T any] struct {
	eventType enums.OutboxEventType
	byVersion map[int]func(json.RawMessage) (T, error)
}

func NewDecoders[T any](eventType enums.OutboxEventType) *Decoders[T] {
	return &Decoders[T]{eventType: eventType, byVersion: map[int]func(json.RawMessage) (T, error){}}
}

// Add installs fn for version, replacing any earlier decoder.
func (d *Decoders[T]) Add(version int, fn func(json.RawMessage) (T, error)) *Decoders[T] {
	d.byVersion[version] = fn
	return d
}

// JSON installs a decoder for a version whose payload maps onto T as is.
func (d *Decoders[T]) JSON(version int) *Decoders[T] {
	return d.Add(version, func(payload json.RawMessage) (T, error) {
		var out T
		err := json.Unmarshal(payload, &out)
		return out, err
	})
}

func (d *Decoders[T]) Decode(version int, payload json.RawMessage) (T, error) {
	fn, ok := d.byVersion[version]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s v%d: %w", d.eventType, version, ErrUnknownVersion)
	}
	out, err := fn(payload)
	if err != nil {
		return out, fmt.Errorf("decode %s v%d: %w", d.eventType, version, err)
	}
	return out, nil
}
