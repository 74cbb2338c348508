package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pkgredis "github.com/seovimalraj/locations/pkg/redis"
)

// Store is the byte-level backend of a Remote cache. *pkgredis.Client
// satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Remote stores JSON-encoded values in a shared Store under a namespace.
// Lookups that fail for any reason are reported as misses and logged.
type Remote[V any] struct {
	store     Store
	namespace string
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewRemote creates a Remote tier whose keys are hashed under namespace.
func NewRemote[V any](store Store, namespace string) *Remote[V] {
	return &Remote[V]{
		store:     store,
		namespace: namespace,
		logger:    slog.Default().With("component", "remote-cache", "namespace", namespace),
	}
}

func (r *Remote[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	k := r.buildKey(key)
	data, err := r.store.Get(ctx, k)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			r.logger.Error("cache get failed", "key", k, "error", err)
		}
		r.misses.Add(1)
		return zero, false
	}
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		r.logger.Error("cache unmarshal failed", "key", k, "error", err)
		r.misses.Add(1)
		return zero, false
	}
	r.hits.Add(1)
	return v, true
}

func (r *Remote[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	k := r.buildKey(key)
	data, err := json.Marshal(value)
	if err != nil {
		r.logger.Error("cache marshal failed", "key", k, "error", err)
		return
	}
	if err := r.store.Set(ctx, k, data, ttl); err != nil {
		r.logger.Error("cache set failed", "key", k, "error", err)
	}
}

// Invalidate drops every key in the namespace.
func (r *Remote[V]) Invalidate(ctx context.Context) error {
	deleted, err := r.store.FlushByPattern(ctx, r.namespace+":*")
	if err != nil {
		return fmt.Errorf("invalidating %s cache: %w", r.namespace, err)
	}
	r.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (r *Remote[V]) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}

func (r *Remote[V]) buildKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s:%x", r.namespace, hash[:16])
}
