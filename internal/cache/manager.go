package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/cognigate/cognigate/internal/config"
	"github.com/cognigate/cognigate/pkg/types"
)

// Manager glues the rule table, key generator, and backend together.
// Only non-streaming chat completions are cacheable; a stream consumed
// once cannot be replayed from a stored body.
type Manager struct {
	store  Store
	keys   *KeyGenerator
	logger *slog.Logger
}

// NewManager creates a cache manager over the given backend.
func NewManager(store Store, keys *KeyGenerator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, keys: keys, logger: logger}
}

// matchRule returns the first rule listing the profile, or nil. A rule
// entry of "*" matches every profile.
func matchRule(settings *config.CacheSettings, profileID string) *config.CacheRule {
	for i := range settings.Rules {
		for _, name := range settings.Rules[i].ModelNames {
			if name == profileID || name == "*" {
				return &settings.Rules[i]
			}
		}
	}
	return nil
}

// Lookup checks the cache for a response to this request under the
// given profile. It returns the response on a hit, plus the key and TTL
// for the follow-up Store call on a miss. ok=false with an empty key
// means the profile is not cacheable at all.
func (m *Manager) Lookup(ctx context.Context, settings *config.CacheSettings, profileID string, req *types.ChatRequest) (resp *types.ChatResponse, key string, ttl time.Duration, hit bool) {
	if settings == nil || !settings.Enabled || req.Stream {
		return nil, "", 0, false
	}
	rule := matchRule(settings, profileID)
	if rule == nil {
		return nil, "", 0, false
	}

	key = m.keys.Generate(profileID, req, rule.IncludeInKey)
	ttl = time.Duration(rule.TTLSeconds) * time.Second

	raw, found, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("cache lookup failed", "error", err)
		return nil, key, ttl, false
	}
	if !found {
		return nil, key, ttl, false
	}

	var cached types.ChatResponse
	if err := json.Unmarshal(raw, &cached); err != nil {
		m.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		_ = m.store.Delete(ctx, key)
		return nil, key, ttl, false
	}
	return &cached, key, ttl, true
}

// Store persists a successful response under the key from Lookup.
// Failures are logged and swallowed: the client already has its answer.
func (m *Manager) Store(ctx context.Context, key string, ttl time.Duration, resp *types.ChatResponse) {
	if key == "" || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		m.logger.Warn("cache marshal failed", "error", err)
		return
	}
	if err := m.store.Set(ctx, key, raw, ttl); err != nil {
		m.logger.Warn("cache store failed", "key", key, "error", err)
	}
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.store.Close()
}
