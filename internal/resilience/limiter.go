// Package resilience provides data-plane protection for the gateway.
// The per-client limiter keeps one misbehaving caller from starving the
// credential pool for everyone else.
package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ClientLimiter hands out a token-bucket limiter per client key,
// evicting idle entries so the map does not grow with every IP ever
// seen.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	rate    rate.Limit
	burst   int
	maxIdle time.Duration
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter creates a limiter allowing requestsPerMinute with
// the given burst per client key.
func NewClientLimiter(requestsPerMinute, burst int) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*clientEntry),
		rate:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		maxIdle: 10 * time.Minute,
	}
}

// Allow reports whether the client may proceed.
func (l *ClientLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.clients[key]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// Sweep evicts clients idle longer than the retention window. Run it
// periodically from the server lifecycle.
func (l *ClientLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.maxIdle)
	for key, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// Run sweeps idle clients until ctx is done.
func (l *ClientLimiter) Run(done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
