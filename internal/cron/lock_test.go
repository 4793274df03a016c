package cron

import (
	"context"
	"testing"
	"time"
)

type memoryRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryRedis) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	if m.values[key] != expected {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusiveAndOwned(t *testing.T) {
	store := newMemoryRedis()
	ctx := context.Background()
	first, err := NewRedisLock(store, "wc:cron-worker:lock:test", 0)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "wc:cron-worker:lock:test", time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if store.ttls["wc:cron-worker:lock:test"] != defaultLockTTL {
		t.Fatalf("expected default ttl, got %s", store.ttls["wc:cron-worker:lock:test"])
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second instance must not acquire a held lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, held := store.values["wc:cron-worker:lock:test"]; !held {
		t.Fatal("non-owner release must not delete the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("lock should be free after release")
	}
}

func TestRedisLockReleaseAfterExpiryLeavesNewOwner(t *testing.T) {
	store := newMemoryRedis()
	ctx := context.Background()
	first, _ := NewRedisLock(store, "wc:cron-worker:lock:recon", time.Minute)
	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("first acquire failed")
	}

	// Simulate TTL expiry followed by another instance taking the lock.
	delete(store.values, "wc:cron-worker:lock:recon")
	second, _ := NewRedisLock(store, "wc:cron-worker:lock:recon", time.Minute)
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("second acquire failed")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if store.values["wc:cron-worker:lock:recon"] != second.token {
		t.Fatal("stale owner must not free the new owner's lock")
	}
}

func TestRedisLockRejectsReentrantAcquire(t *testing.T) {
	store := newMemoryRedis()
	ctx := context.Background()
	lock, _ := NewRedisLock(store, "wc:cron-worker:lock:reentrant", time.Minute)
	if ok, err := lock.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, err := lock.Acquire(ctx); err == nil {
		t.Fatal("second acquire by the same holder must fail")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := lock.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected missing store to fail")
	}
	if _, err := NewRedisLock(newMemoryRedis(), "", time.Minute); err == nil {
		t.Fatal("expected missing key to fail")
	}
}
