// Package cache provides the response cache for non-streaming chat
// completions. A rule table decides which profiles are cacheable and
// which request fields participate in the fingerprint; backends store
// serialized responses under the fingerprint key.
package cache

import (
	"context"
	"time"
)

// Store is the backend interface. Get returns (nil, false, nil) on a
// miss; an error means the backend itself failed and the caller should
// proceed as if missed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
