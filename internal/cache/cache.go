// Package cache provides the TTL-bounded LRU cache and in-flight request deduplication placed in front of every provider call.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/desertthunder/songbridge/internal/metrics"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Entry is a cached value with its bookkeeping.
type Entry[V any] struct {
	Key          string
	Value        V
	InsertedAt   time.Time
	LastAccessAt time.Time
	Hits         int
}

// Cache is a capacity-bounded key/value store with a fixed TTL per instance.
//
// Expired entries are invisible to Get and are purged lazily on access or by [Cache.Sweep].
// Set evicts the least-recently-used entry when full, regardless of TTL.
type Cache[V any] struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, *Entry[V]]
	ttl   time.Duration
	now   Clock
	name  string
	evict string // reason label for the eviction callback
}

// Option configures a [Cache].
type Option func(*options)

type options struct {
	clock Clock
	name  string
}

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithName sets the metrics label for the cache.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// New creates a cache holding at most maxSize entries for ttl each.
func New[V any](maxSize int, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{clock: time.Now, name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize < 1 {
		maxSize = 1
	}

	c := &Cache[V]{ttl: ttl, now: o.clock, name: o.name, evict: "lru"}
	// simplelru only fails for a non-positive size
	c.lru, _ = simplelru.NewLRU[string, *Entry[V]](maxSize, func(string, *Entry[V]) {
		metrics.CacheEvictions.WithLabelValues(c.name, c.evict).Inc()
	})
	return c
}

// Get returns the live value for key and refreshes its recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.lru.Peek(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	now := c.now()
	if c.expired(entry, now) {
		c.removeExpired(key)
		metrics.CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	c.lru.Get(key)
	entry.LastAccessAt = now
	entry.Hits++
	metrics.CacheHits.WithLabelValues(c.name).Inc()
	return entry.Value, true
}

// Set stores value under key, evicting the least-recently-used entry when at capacity.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.lru.Add(key, &Entry[V]{Key: key, Value: value, InsertedAt: now, LastAccessAt: now})
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeWith("deleted", key)
}

// Peek returns a copy of the entry without touching recency or hit counts. Expired entries are reported as absent.
func (c *Cache[V]) Peek(key string) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Peek(key)
	if !ok || c.expired(entry, c.now()) {
		return Entry[V]{}, false
	}
	return *entry, true
}

// Len returns the number of stored entries, including expired ones not yet purged.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evict = "purged"
	c.lru.Purge()
	c.evict = "lru"
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && c.expired(entry, now) {
			c.removeExpired(key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs [Cache.Sweep] every interval until ctx is done.
//
// The returned function stops the sweeper and waits for it to exit.
func (c *Cache[V]) StartSweeper(ctx context.Context, interval time.Duration, logger *log.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	if interval <= 0 {
		return cancel
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.Sweep(); n > 0 && logger != nil {
					logger.Debug("swept expired cache entries", "cache", c.name, "removed", n)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (c *Cache[V]) expired(entry *Entry[V], now time.Time) bool {
	return c.ttl > 0 && !now.Before(entry.InsertedAt.Add(c.ttl))
}

func (c *Cache[V]) removeExpired(key string) {
	c.removeWith("ttl", key)
}

// removeWith must be called with mu held.
func (c *Cache[V]) removeWith(reason, key string) {
	c.evict = reason
	c.lru.Remove(key)
	c.evict = "lru"
}
