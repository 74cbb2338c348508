package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seovimalraj/locations/pkg/metrics"
)

// DefaultLoadTimeout bounds a shared load when no other limit is set.
const DefaultLoadTimeout = 30 * time.Second

// Tiered checks an in-process Expiring cache, then an optional Remote tier,
// and finally loads the value. Concurrent loads of one key share a single
// call. Failed loads are never cached.
type Tiered[V any] struct {
	name        string
	local       *Expiring[V]
	remote      *Remote[V]
	group       singleflight.Group
	loadTimeout time.Duration
	metrics     *metrics.Metrics
}

// NewTiered wraps local. remote and m may be nil.
func NewTiered[V any](name string, local *Expiring[V], remote *Remote[V], m *metrics.Metrics) *Tiered[V] {
	return &Tiered[V]{name: name, local: local, remote: remote, loadTimeout: DefaultLoadTimeout, metrics: m}
}

// WithLoadTimeout sets the limit on a shared load. Non-positive values keep
// the current limit.
func (t *Tiered[V]) WithLoadTimeout(d time.Duration) *Tiered[V] {
	if d > 0 {
		t.loadTimeout = d
	}
	return t
}

// Local exposes the in-process tier.
func (t *Tiered[V]) Local() *Expiring[V] {
	return t.local
}

// Get looks key up in both tiers without loading. A remote hit is copied
// into the local tier.
func (t *Tiered[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := t.local.Get(key); ok {
		t.metrics.CacheLookup(t.name, true)
		return v, true
	}
	if t.remote != nil {
		if v, ok := t.remote.Get(ctx, key); ok {
			t.local.Set(key, v)
			t.metrics.CacheLookup(t.name, true)
			return v, true
		}
	}
	t.metrics.CacheLookup(t.name, false)
	var zero V
	return zero, false
}

// Set stores value in both tiers under the local default TTL.
func (t *Tiered[V]) Set(ctx context.Context, key string, value V) {
	t.local.Set(key, value)
	if t.remote != nil {
		t.remote.Set(ctx, key, value, t.local.DefaultTTL())
	}
}

// GetOrLoad returns the cached value for key or calls load once across all
// concurrent callers and caches its result. The bool reports a cache hit.
//
// The shared load is detached from any one caller's cancellation and is
// bounded by the load timeout instead. Each caller stops waiting when its
// own ctx is done and gets ctx.Err(); the load carries on for the others.
func (t *Tiered[V]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (V, error)) (V, bool, error) {
	var zero V
	if v, ok := t.Get(ctx, key); ok {
		return v, true, nil
	}
	ch := t.group.DoChan(key, func() (_ any, err error) {
		// DoChan re-panics on its own goroutine, where nothing can recover.
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("cache %s: load of %q panicked: %v", t.name, key, rec)
			}
		}()
		if v, ok := t.local.Get(key); ok {
			return v, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.loadTimeout)
		defer cancel()
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		t.Set(loadCtx, key, v)
		return v, nil
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, false, res.Err
	}
	v, ok := res.Val.(V)
	if !ok {
		return zero, false, fmt.Errorf("cache %s: unexpected value type %T", t.name, res.Val)
	}
	return v, false, nil
}

// TTL returns the staleness window of the cache.
func (t *Tiered[V]) TTL() time.Duration {
	return t.local.DefaultTTL()
}
