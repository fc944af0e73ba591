package tasks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/songbridge/internal/matcher"
	"github.com/desertthunder/songbridge/internal/metrics"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/retry"
	"github.com/desertthunder/songbridge/internal/services"
	"github.com/desertthunder/songbridge/internal/shared"
)

// maxAlternateResults caps the candidates requested from each alternate provider.
const maxAlternateResults = 10

// Engine is the orchestration surface used by the CLI and the HTTP server.
type Engine interface {
	// Search fans keyword out to every enabled provider and interleaves the results.
	Search(ctx context.Context, keyword string, limit int, progress chan<- ProgressUpdate) (*models.SearchResult, error)

	// ResolveURL returns a playable URL for track, falling back to equivalent tracks on other providers.
	ResolveURL(ctx context.Context, track models.Track, quality models.Quality, progress chan<- ProgressUpdate) (*models.StreamResult, error)

	// ResolveLyric returns the lyric for track, falling back the same way as [Engine.ResolveURL].
	ResolveLyric(ctx context.Context, track models.Track, progress chan<- ProgressUpdate) (*models.Lyric, error)
}

// ResolutionRecorder persists a resolution outcome for the history log.
//
// Recording is best effort: failures are logged and never surface to the caller.
type ResolutionRecorder interface {
	RecordResolution(ctx context.Context, r models.Resolution) error
}

// Options configures an [Orchestrator]. Zero values fall back to defaults.
type Options struct {
	Strategy    models.Strategy
	SearchLimit int
	Matcher     *matcher.Matcher
	Policy      retry.Policy
	Caches      *services.Caches
	Health      *HealthTracker
	Recorder    ResolutionRecorder
	Logger      *log.Logger
	Clock       func() time.Time
}

// Orchestrator implements [Engine] on top of a provider registry.
//
// Every provider is wrapped in a [services.CachedProvider] whose attempts feed the health tracker.
// It is safe for concurrent use.
type Orchestrator struct {
	registry    *services.Registry
	caches      *services.Caches
	policy      retry.Policy
	mu          sync.Mutex
	providers   map[string]services.Provider
	health      *HealthTracker
	matcher     *matcher.Matcher
	strategy    models.Strategy
	searchLimit int
	recorder    ResolutionRecorder
	logger      *log.Logger
	now         func() time.Time
}

var _ Engine = (*Orchestrator)(nil)

// New creates an Orchestrator over the providers in registry. Providers registered later are wrapped on first use.
func New(registry *services.Registry, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Matcher == nil {
		opts.Matcher = matcher.Default()
	}
	if opts.Caches == nil {
		opts.Caches = services.NewCaches(shared.DefaultConfig().Cache)
	}
	if opts.Health == nil {
		opts.Health = NewHealthTracker(DefaultAlpha, opts.Clock)
	}
	if opts.SearchLimit <= 0 || opts.SearchLimit > maxAlternateResults {
		opts.SearchLimit = maxAlternateResults
	}
	if opts.Strategy == "" {
		opts.Strategy = models.StrategyAuto
	}

	o := &Orchestrator{
		registry:    registry,
		caches:      opts.Caches,
		policy:      opts.Policy,
		providers:   make(map[string]services.Provider),
		health:      opts.Health,
		matcher:     opts.Matcher,
		strategy:    opts.Strategy,
		searchLimit: opts.SearchLimit,
		recorder:    opts.Recorder,
		logger:      opts.Logger,
		now:         opts.Clock,
	}

	for _, id := range registry.IDs() {
		o.provider(id)
	}
	return o
}

// provider returns the wrapped provider for id, wrapping it on first use.
func (o *Orchestrator) provider(id string) (services.Provider, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if p, ok := o.providers[id]; ok {
		return p, true
	}
	p, err := o.registry.Get(id)
	if err != nil {
		return nil, false
	}
	wrapped := services.NewCachedProvider(p, o.caches, o.policy, o.observe)
	o.providers[id] = wrapped
	return wrapped, true
}

// FromConfig creates an Orchestrator from the fallback, matcher, cache and retry sections of cfg.
func FromConfig(cfg *shared.Config, registry *services.Registry, caches *services.Caches, recorder ResolutionRecorder, logger *log.Logger) (*Orchestrator, error) {
	strategy, err := models.ParseStrategy(cfg.Fallback.Strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	return New(registry, Options{
		Strategy:    strategy,
		SearchLimit: cfg.Fallback.SearchLimit,
		Matcher:     matcher.FromConfig(cfg.Matcher),
		Policy:      retry.FromConfig(cfg.Retry),
		Caches:      caches,
		Recorder:    recorder,
		Logger:      logger,
	}), nil
}

// Strategy returns the active ranking strategy.
func (o *Orchestrator) Strategy() models.Strategy { return o.strategy }

// observe is the attempt hook of every wrapped provider.
func (o *Orchestrator) observe(provider, op string, a retry.Attempt) {
	o.health.Record(provider, healthSuccess(a.Err), a.Latency)
	if a.Err != nil {
		o.logger.Debug("provider attempt failed", "provider", provider, "op", op, "attempt", a.Number, "kind", a.Kind, "error", a.Err)
	}
}

// Health returns every provider's health in declaration order.
func (o *Orchestrator) Health() []models.ProviderHealth {
	infos := o.registry.List()
	out := make([]models.ProviderHealth, 0, len(infos))
	for _, info := range infos {
		h := o.health.Get(info.ID)
		h.Enabled = info.Enabled
		out = append(out, h)
	}
	return out
}

// ProviderHealth returns the health of one provider.
func (o *Orchestrator) ProviderHealth(id string) (models.ProviderHealth, error) {
	info, err := o.registry.Info(id)
	if err != nil {
		return models.ProviderHealth{}, err
	}
	h := o.health.Get(id)
	h.Enabled = info.Enabled
	return h, nil
}

// SetEnabled toggles a provider at runtime.
func (o *Orchestrator) SetEnabled(id string, enabled bool) error {
	if err := o.registry.SetEnabled(id, enabled); err != nil {
		return err
	}
	o.logger.Info("provider toggled", "provider", id, "enabled", enabled)
	return nil
}

// ResetHealth clears the recorded health of a provider.
func (o *Orchestrator) ResetHealth(id string) error {
	if _, err := o.registry.Info(id); err != nil {
		return err
	}
	o.health.Reset(id)
	return nil
}

// RestoreHealth loads persisted snapshots, including the enabled flag. Unknown providers are skipped.
func (o *Orchestrator) RestoreHealth(snapshots []models.ProviderHealth) {
	for _, s := range snapshots {
		if err := o.registry.SetEnabled(s.ProviderID, s.Enabled); err != nil {
			o.logger.Debug("skipping health snapshot", "provider", s.ProviderID, "error", err)
			continue
		}
		o.health.Restore(s)
	}
}

// rank orders the enabled providers, minus exclude, by the active strategy.
func (o *Orchestrator) rank(exclude map[string]bool) []string {
	var candidates []candidateStats
	for _, id := range o.registry.Enabled() {
		if exclude[id] {
			continue
		}
		if _, ok := o.provider(id); !ok {
			continue
		}
		h := o.health.Get(id)
		candidates = append(candidates, candidateStats{
			ID:            id,
			SuccessRate:   h.SuccessRate,
			AvgLatency:    h.AvgLatency,
			QualityWeight: o.registry.QualityWeight(id),
		})
	}
	return rankProviders(o.strategy, candidates)
}

// record persists and counts a finished resolution.
func (o *Orchestrator) record(ctx context.Context, r models.Resolution) {
	metrics.Resolutions.WithLabelValues(string(r.Op), r.Outcome).Inc()
	if o.recorder == nil {
		return
	}

	r.ID = shared.GenerateID()
	r.CreatedAt = o.now().UTC()
	if err := o.recorder.RecordResolution(context.WithoutCancel(ctx), r); err != nil {
		o.logger.Warn("failed to record resolution", "track", r.TrackID, "error", err)
	}
}
