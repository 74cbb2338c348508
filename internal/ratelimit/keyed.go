package ratelimit

import (
	"sync"
	"time"
)

// entry tracks the token-bucket state for a single key.
type entry struct {
	tokens    float64
	lastCheck time.Time
}

// Keyed is an in-memory token bucket per client key. Each key may spend
// limit tokens per window; tokens refill continuously.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewKeyed creates a limiter and starts its stale-entry sweeper. Close stops
// the sweeper.
func NewKeyed(limit int, window time.Duration) *Keyed {
	k := &Keyed{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go k.cleanup()
	return k
}

// Allow consumes one token for key and reports whether one was available.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	e, ok := k.entries[key]
	if !ok {
		k.entries[key] = &entry{tokens: float64(k.limit - 1), lastCheck: now}
		return k.limit > 0
	}

	elapsed := now.Sub(e.lastCheck)
	e.lastCheck = now
	rate := float64(k.limit) / k.window.Seconds()
	e.tokens += elapsed.Seconds() * rate
	if e.tokens > float64(k.limit) {
		e.tokens = float64(k.limit)
	}
	if e.tokens < 1 {
		return false
	}
	e.tokens--
	return true
}

// RetryAfter is the time for one token to refill.
func (k *Keyed) RetryAfter() time.Duration {
	if k.limit <= 0 {
		return k.window
	}
	return k.window / time.Duration(k.limit)
}

// Reset clears the state for key.
func (k *Keyed) Reset(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.entries, key)
}

// Close stops the background sweeper.
func (k *Keyed) Close() {
	k.once.Do(func() { close(k.stop) })
}

func (k *Keyed) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
			k.mu.Lock()
			cutoff := k.now().Add(-2 * k.window)
			for key, e := range k.entries {
				if e.lastCheck.Before(cutoff) {
					delete(k.entries, key)
				}
			}
			k.mu.Unlock()
		}
	}
}
