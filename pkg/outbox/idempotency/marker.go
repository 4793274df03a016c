// Package idempotency records which ids a worker has already handled. Event
// consumers mark outbox event ids; payment flows mark gateway references
// while a charge is in flight.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/walletcore/pkg/redis"
)

// Marker claims ids within one scope with SETNX. A zero ttl keeps the mark
// until it is deleted.
type Marker struct {
	store redis.IdempotencyStore
	scope string
	ttl   time.Duration
}

func NewMarker(store redis.IdempotencyStore, scope string, ttl time.Duration) (*Marker, error) {
	scope = strings.TrimSpace(scope)
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case scope == "":
		return nil, errors.New("idempotency scope is required")
	case ttl < 0:
		return nil, errors.New("idempotency ttl must be non-negative")
	}
	return &Marker{store: store, scope: scope, ttl: ttl}, nil
}

// ForConsumer scopes marks to processed events of one consumer, under
// `wc:idempotency:evt:processed:<consumer>:<event_id>`.
func ForConsumer(store redis.IdempotencyStore, consumer string, ttl time.Duration) (*Marker, error) {
	if strings.TrimSpace(consumer) == "" {
		return nil, errors.New("consumer name is required")
	}
	return NewMarker(store, "evt:processed:"+strings.TrimSpace(consumer), ttl)
}

// CheckAndMark claims id and reports whether an earlier call already had.
func (m *Marker) CheckAndMark(ctx context.Context, id string) (bool, error) {
	key, err := m.key(id)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, "1", m.ttl)
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", key, err)
	}
	return !claimed, nil
}

// Delete releases id so a failed attempt can run again.
func (m *Marker) Delete(ctx context.Context, id string) error {
	key, err := m.key(id)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Marker) key(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("idempotency id is required")
	}
	return m.store.IdempotencyKey(m.scope, id), nil
}
