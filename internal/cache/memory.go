package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is an in-process cache backend. Suited to single-instance
// deployments; multi-instance setups want the redis backend so every
// replica sees the same entries.
type MemoryStore struct {
	inner *gocache.Cache
}

// NewMemoryStore creates a memory backend. Expired entries are purged
// every minute.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		inner: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

// Get returns the cached value, or found=false on a miss.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	return v.([]byte), true, nil
}

// Set stores the value with a per-entry TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.inner.Set(key, value, ttl)
	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.inner.Delete(key)
	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
