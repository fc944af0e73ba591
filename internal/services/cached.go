package services

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songbridge/internal/cache"
	"github.com/desertthunder/songbridge/internal/metrics"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/retry"
	"github.com/desertthunder/songbridge/internal/shared"
)

// Caches are the loaders shared by every [CachedProvider]. Keys carry the provider ID, so one set serves all providers.
type Caches struct {
	Search *cache.Loader[*models.SearchResult]
	URL    *cache.Loader[*models.StreamResult]
	Lyric  *cache.Loader[*models.Lyric]
}

// NewCaches sizes the loaders from config.
func NewCaches(cfg shared.CacheConfig, opts ...cache.Option) *Caches {
	return &Caches{
		Search: cache.NewLoader[*models.SearchResult]("search", cfg.MaxSize, cfg.SearchTTL.Duration, opts...),
		URL:    cache.NewLoader[*models.StreamResult]("url", cfg.MaxSize, cfg.URLTTL.Duration, opts...),
		Lyric:  cache.NewLoader[*models.Lyric]("lyric", cfg.MaxSize, cfg.LyricTTL.Duration, opts...),
	}
}

// StartSweepers runs a sweeper per cache. The returned function stops all of them.
func (c *Caches) StartSweepers(ctx context.Context, interval time.Duration, logger *log.Logger) (stop func()) {
	stops := []func(){
		c.Search.Cache.StartSweeper(ctx, interval, logger),
		c.URL.Cache.StartSweeper(ctx, interval, logger),
		c.Lyric.Cache.StartSweeper(ctx, interval, logger),
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}

// Purge empties every cache.
func (c *Caches) Purge() {
	c.Search.Cache.Purge()
	c.URL.Cache.Purge()
	c.Lyric.Cache.Purge()
}

// SearchKey is the cache key for a provider search.
func SearchKey(provider string, limit int, keyword string) string {
	return "search:" + provider + ":" + strconv.Itoa(limit) + ":" + keyword
}

// URLKey is the cache key for a resolved stream.
func URLKey(trackID string, q models.Quality) string {
	return "url:" + trackID + ":" + string(q)
}

// LyricKey is the cache key for a lyric.
func LyricKey(trackID string) string {
	return "lyric:" + trackID
}

// AttemptHook receives every observed attempt against a provider.
type AttemptHook func(provider, op string, a retry.Attempt)

// CachedProvider decorates a [Provider] with the cache, in-flight deduplication and the retry policy.
//
// The retry loop runs inside the deduplicated call, so concurrent identical requests produce one attempt sequence.
// Cached values are shared between callers and must not be mutated.
type CachedProvider struct {
	Provider
	caches *Caches
	policy retry.Policy
	hook   AttemptHook
}

// NewCachedProvider wraps p. hook may be nil.
func NewCachedProvider(p Provider, caches *Caches, policy retry.Policy, hook AttemptHook) *CachedProvider {
	return &CachedProvider{Provider: p, caches: caches, policy: policy, hook: hook}
}

// Unwrap returns the decorated provider.
func (c *CachedProvider) Unwrap() Provider { return c.Provider }

func (c *CachedProvider) policyFor(op string) retry.Policy {
	id := c.Provider.ID()
	return c.policy.WithObserver(func(a retry.Attempt) {
		outcome := "ok"
		if a.Err != nil {
			outcome = a.Kind.String()
		}
		metrics.ObserveAttempt(id, op, outcome, a.Latency)
		if c.hook != nil {
			c.hook(id, op, a)
		}
	})
}

func (c *CachedProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	key := SearchKey(c.Provider.ID(), limit, keyword)
	return c.caches.Search.Load(ctx, key, func(ctx context.Context) (*models.SearchResult, error) {
		return retry.Do(ctx, c.policyFor("search"), func(ctx context.Context) (*models.SearchResult, error) {
			res, err := c.Provider.Search(ctx, keyword, limit)
			if err == nil && res == nil {
				res = &models.SearchResult{}
			}
			return res, err
		})
	})
}

func (c *CachedProvider) ResolveURL(ctx context.Context, track models.Track, q models.Quality) (*models.StreamResult, error) {
	return c.caches.URL.Load(ctx, URLKey(track.ID, q), func(ctx context.Context) (*models.StreamResult, error) {
		return retry.Do(ctx, c.policyFor("url"), func(ctx context.Context) (*models.StreamResult, error) {
			res, err := c.Provider.ResolveURL(ctx, track, q)
			if err == nil && (res == nil || res.URL == "") {
				return nil, shared.NewProviderError(c.Provider.ID(), "url", shared.KindEmpty, nil)
			}
			return res, err
		})
	})
}

func (c *CachedProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	return c.caches.Lyric.Load(ctx, LyricKey(track.ID), func(ctx context.Context) (*models.Lyric, error) {
		return retry.Do(ctx, c.policyFor("lyric"), func(ctx context.Context) (*models.Lyric, error) {
			res, err := c.Provider.GetLyric(ctx, track)
			if err == nil && res == nil {
				res = &models.Lyric{ResolvedFrom: c.Provider.ID(), TrackID: track.ID}
			}
			return res, err
		})
	})
}
