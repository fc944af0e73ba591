// package services defines the [Provider] contract for upstream music platforms and its adapters
//
// NetEase, Kugou, QQ, Kuwo, Migu, Spotify, YouTube Music (via proxy)
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

// Provider is the uniform adapter for one upstream platform.
type Provider interface {
	// ID returns the stable provider identifier used as the track ID prefix.
	ID() string

	// Search returns tracks in upstream relevance order.
	// Zero matches is an empty result, not an error.
	Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error)

	// ResolveURL returns a playable URL for one of this provider's tracks.
	// Copyright, region and paywall conditions fail with [shared.ErrNotPlayable].
	ResolveURL(ctx context.Context, track models.Track, quality models.Quality) (*models.StreamResult, error)

	// GetLyric returns the track's lyric, or an empty lyric when the platform has none.
	GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error)

	// IsPlayable evaluates the platform's VIP/copyright flags on a raw upstream record.
	IsPlayable(raw json.RawMessage) bool
}

// Options configures an adapter.
type Options struct {
	BaseURL      string // overrides every upstream host, used for proxies and tests
	Cookie       string
	RateLimit    float64 // requests per second, 0 = unlimited
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	Logger       *log.Logger
}

// Factory builds an adapter.
type Factory func(Options) (Provider, error)

var factories = map[string]Factory{
	NeteaseID: func(o Options) (Provider, error) { return NewNeteaseProvider(o), nil },
	KugouID:   func(o Options) (Provider, error) { return NewKugouProvider(o), nil },
	QQID:      func(o Options) (Provider, error) { return NewQQProvider(o), nil },
	KuwoID:    func(o Options) (Provider, error) { return NewKuwoProvider(o), nil },
	MiguID:    func(o Options) (Provider, error) { return NewMiguProvider(o), nil },
	YouTubeID: func(o Options) (Provider, error) { return NewYouTubeProvider(o), nil },
	SpotifyID: func(o Options) (Provider, error) { return NewSpotifyProvider(o) },
}

// Known returns the IDs of every built-in adapter.
func Known() []string {
	ids := make([]string, 0, len(factories))
	for id := range factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// New builds the adapter registered under id.
func New(id string, opts Options) (Provider, error) {
	factory, ok := factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	return factory(opts)
}

// FromConfig builds a [Registry] with one adapter per configured provider, in declaration order.
//
// Disabled providers are still registered so they can be enabled at runtime, unless they cannot be
// built (e.g. missing credentials).
func FromConfig(cfg *shared.Config, client *http.Client, logger *log.Logger) (*Registry, error) {
	registry := NewRegistry()
	for _, id := range cfg.ProviderOrder() {
		pc := cfg.Providers[id]
		opts := Options{
			BaseURL:      pc.BaseURL,
			Cookie:       pc.Cookie,
			RateLimit:    pc.RateLimit,
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			HTTPClient:   client,
			Logger:       logger,
		}
		if id == YouTubeID && opts.BaseURL == "" {
			opts.BaseURL = pc.ProxyURL
		}

		p, err := New(id, opts)
		if err != nil && !pc.Enabled {
			if logger != nil {
				logger.Warn("skipping disabled provider", "provider", id, "error", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p, pc.Enabled, pc.QualityWeight); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
