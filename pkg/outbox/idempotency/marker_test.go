package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]time.Duration
	err    error
}

func (m *memoryStore) Get(context.Context, string) (string, error) { return "", nil }

func (m *memoryStore) Set(_ context.Context, key string, _ any, ttl time.Duration) error {
	m.values[key] = ttl
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = ttl
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "wc:idempotency:" + scope + ":" + id
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]time.Duration{}}
}

func TestConsumerMarkerClaimsEventOnce(t *testing.T) {
	store := newMemoryStore()
	marker, err := ForConsumer(store, "ledger-export", 24*time.Hour)
	require.NoError(t, err)

	eventID := uuid.NewString()
	seen, err := marker.CheckAndMark(context.Background(), eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	key := "wc:idempotency:evt:processed:ledger-export:" + eventID
	assert.Equal(t, 24*time.Hour, store.values[key])

	seen, err = marker.CheckAndMark(context.Background(), eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, marker.Delete(context.Background(), eventID))
	assert.NotContains(t, store.values, key)
}

func TestMarkerScopesAreIndependent(t *testing.T) {
	store := newMemoryStore()
	funding, err := NewMarker(store, "wallet_funding", time.Minute)
	require.NoError(t, err)
	premium, err := NewMarker(store, "premium_gateway", time.Minute)
	require.NoError(t, err)

	seen, err := funding.CheckAndMark(context.Background(), "sq-1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = premium.CheckAndMark(context.Background(), "sq-1")
	require.NoError(t, err)
	assert.False(t, seen, "a reference claimed for funding is not claimed for premium")
}

func TestMarkerRejectsBadInput(t *testing.T) {
	store := newMemoryStore()
	_, err := NewMarker(nil, "x", 0)
	assert.Error(t, err)
	_, err = NewMarker(store, " ", 0)
	assert.Error(t, err)
	_, err = NewMarker(store, "x", -time.Second)
	assert.Error(t, err)
	_, err = ForConsumer(store, "", time.Hour)
	assert.Error(t, err)

	marker, err := NewMarker(store, "x", 0)
	require.NoError(t, err)
	_, err = marker.CheckAndMark(context.Background(), "")
	assert.Error(t, err)
	assert.Error(t, marker.Delete(context.Background(), ""))

	store.err = errors.New("redis down")
	_, err = marker.CheckAndMark(context.Background(), "ref")
	assert.ErrorIs(t, err, store.err)
}
