// Package cache implements the time-window response cache (C2): a per-key
// value store with monotonic-clock TTL. It is adapted from the teacher's
// internal/resources.Manager LRU idiom, trimmed down to exactly the TTL
// contract spec.md §4.2 demands — no LRU eviction, no disk spill, no
// checkpointing; this cache never evicts on its own, it only answers
// "is this entry still fresh" on read.
package cache

import (
	"sync"
	"time"

	"github.com/spanpanel/spanpanel-go/internal/telemetry/metrics"
)

// Clock abstracts "now" so tests can control TTL expiry deterministically,
// mirroring the teacher's ratelimit.Clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	value    any
	insertAt time.Time
}

// Cache is a safe-for-concurrent-use time-window cache. The zero value is
// not usable; construct with New.
type Cache struct {
	ttl   time.Duration
	clock Clock

	mu      sync.RWMutex
	entries map[string]entry

	hits   metrics.Counter
	misses metrics.Counter
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithClock overrides the clock used to timestamp and evaluate entries.
func WithClock(c Clock) Option {
	return func(ca *Cache) { ca.clock = c }
}

// WithMetrics wires a metrics.Provider to publish hit/miss counters.
func WithMetrics(provider metrics.Provider) Option {
	return func(ca *Cache) {
		if provider == nil {
			return
		}
		ca.hits = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "spanpanel", Subsystem: "cache", Name: "hits_total", Help: "Cache hits",
		}})
		ca.misses = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "spanpanel", Subsystem: "cache", Name: "misses_total", Help: "Cache misses",
		}})
	}
}

// New constructs a Cache with the given TTL. A TTL of zero disables
// storage entirely — Get always misses and Set is a no-op, per spec §4.2.
// A negative TTL is rejected with ok=false so callers can surface a
// Validation error at construction.
func New(ttl time.Duration, opts ...Option) (*Cache, bool) {
	if ttl < 0 {
		return nil, false
	}
	c := &Cache{ttl: ttl, clock: realClock{}, entries: make(map[string]entry)}
	for _, opt := range opts {
		opt(c)
	}
	return c, true
}

// Get returns the cached value for key and whether it was a fresh hit.
func (c *Cache) Get(key string) (any, bool) {
	if c.ttl == 0 {
		c.countMiss()
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.countMiss()
		return nil, false
	}
	if c.clock.Now().Sub(e.insertAt) > c.ttl {
		c.countMiss()
		return nil, false
	}
	c.countHit()
	return e.value, true
}

// Set stores value under key, timestamped with the current monotonic time.
// A zero TTL cache silently discards the write.
func (c *Cache) Set(key string, value any) {
	if c.ttl == 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{value: value, insertAt: c.clock.Now()}
	c.mu.Unlock()
}

// Invalidate removes key, if present. Used by mutating operations
// (set_circuit_relay, overrides) that must invalidate derived cache entries.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears every entry.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) countHit() {
	if c.hits != nil {
		c.hits.Inc(1)
	}
}

func (c *Cache) countMiss() {
	if c.misses != nil {
		c.misses.Inc(1)
	}
}
