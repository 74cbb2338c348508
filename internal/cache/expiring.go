// Package cache provides the in-process Expiring cache used by every
// upstream client, an optional Redis-backed Remote tier, and Tiered, which
// layers the two and collapses concurrent loads of the same key.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Expiring is a key/value map with optional per-entry TTL. Expired entries
// are evicted lazily by the read that finds them; there is no size bound
// and no background sweep. Safe for concurrent use.
type Expiring[V any] struct {
	mu         sync.Mutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

// NewExpiring creates a cache whose Set uses defaultTTL. A zero defaultTTL
// stores entries that never expire.
func NewExpiring[V any](defaultTTL time.Duration) *Expiring[V] {
	return &Expiring[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// WithClock replaces the wall clock, for tests.
func (c *Expiring[V]) WithClock(now func() time.Time) *Expiring[V] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns the value for key. A hit on an entry whose expiry has passed
// deletes it and reports a miss.
func (c *Expiring[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under the default TTL.
func (c *Expiring[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value for ttl. A zero ttl never expires.
func (c *Expiring[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// Delete removes key if present.
func (c *Expiring[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, including expired ones that
// have not been read since expiring.
func (c *Expiring[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// DefaultTTL returns the TTL used by Set.
func (c *Expiring[V]) DefaultTTL() time.Duration {
	return c.defaultTTL
}
