package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/desertthunder/songbridge/internal/metrics"
)

// Deduplicator collapses concurrent calls that share a key into one underlying call.
//
// Registration of the in-flight call is atomic (singleflight), so at most one call per key runs at a time.
// Every caller that joined before it finished receives the identical value or error. The slot is released
// as soon as the call returns, so a failure is never replayed to later callers.
type Deduplicator[V any] struct {
	group singleflight.Group
	name  string
}

// NewDeduplicator creates a deduplicator. name labels its metrics.
func NewDeduplicator[V any](name string) *Deduplicator[V] {
	return &Deduplicator[V]{name: name}
}

// Do runs fn once for all concurrent callers of key.
//
// fn receives a context detached from any single caller's cancellation so one caller giving up does not fail the
// others; the caller itself stops waiting when ctx is done. shared reports whether the result came from another
// caller's call.
func (d *Deduplicator[V]) Do(ctx context.Context, key string, fn func(context.Context) (V, error)) (v V, shared bool, err error) {
	detached := context.WithoutCancel(ctx)
	ch := d.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			metrics.DedupShared.WithLabelValues(d.name).Inc()
		}
		if res.Err != nil {
			var zero V
			return zero, res.Shared, res.Err
		}
		v, _ = res.Val.(V)
		return v, res.Shared, nil
	}
}

// Forget drops the in-flight slot for key so the next caller starts a fresh call.
func (d *Deduplicator[V]) Forget(key string) {
	d.group.Forget(key)
}

// Loader layers a [Cache] over a [Deduplicator]: hits are served from the cache, misses are deduplicated and
// successful results are stored.
type Loader[V any] struct {
	Cache *Cache[V]
	Dedup *Deduplicator[V]
}

// NewLoader creates a cache-backed loader.
func NewLoader[V any](name string, maxSize int, ttl time.Duration, opts ...Option) *Loader[V] {
	return &Loader[V]{
		Cache: New[V](maxSize, ttl, append([]Option{WithName(name)}, opts...)...),
		Dedup: NewDeduplicator[V](name),
	}
}

// Load returns the cached value for key or fetches it through fn.
func (l *Loader[V]) Load(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, error) {
	if v, ok := l.Cache.Get(key); ok {
		return v, nil
	}

	v, _, err := l.Dedup.Do(ctx, key, func(ctx context.Context) (V, error) {
		// A call that finished between our miss and registration already filled the cache.
		if entry, ok := l.Cache.Peek(key); ok {
			return entry.Value, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		l.Cache.Set(key, v)
		return v, nil
	})
	return v, err
}
