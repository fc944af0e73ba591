package tasks

import (
	"sync"
	"time"

	"github.com/desertthunder/songbridge/internal/metrics"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

// DefaultAlpha is the smoothing factor of the health moving averages.
const DefaultAlpha = 0.1

// HealthTracker keeps an exponential moving average of success and latency per provider.
//
// Unseen providers report a success rate of 1 and no latency. The first latency sample seeds the average.
type HealthTracker struct {
	mu    sync.Mutex
	alpha float64
	now   func() time.Time
	stats map[string]models.ProviderHealth
}

// NewHealthTracker creates a tracker. A non-positive alpha falls back to [DefaultAlpha]; a nil clock uses [time.Now].
func NewHealthTracker(alpha float64, now func() time.Time) *HealthTracker {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	if now == nil {
		now = time.Now
	}
	return &HealthTracker{alpha: alpha, now: now, stats: make(map[string]models.ProviderHealth)}
}

// Record folds one attempt into the provider's averages.
func (h *HealthTracker) Record(provider string, success bool, latency time.Duration) {
	h.mu.Lock()
	s := h.entry(provider)

	x := 0.0
	if success {
		x = 1
	}
	s.SuccessRate = h.alpha*x + (1-h.alpha)*s.SuccessRate

	if s.Samples == 0 || s.AvgLatency == 0 {
		s.AvgLatency = latency
	} else {
		s.AvgLatency = time.Duration(h.alpha*float64(latency) + (1-h.alpha)*float64(s.AvgLatency))
	}
	s.Samples++
	s.UpdatedAt = h.now()
	h.stats[provider] = s
	h.mu.Unlock()

	metrics.ProviderSuccessRate.WithLabelValues(provider).Set(s.SuccessRate)
}

// Get returns a copy of the provider's health. Enabled is left for the caller to fill.
func (h *HealthTracker) Get(provider string) models.ProviderHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entry(provider)
}

// Reset forgets everything recorded for provider.
func (h *HealthTracker) Reset(provider string) {
	h.mu.Lock()
	delete(h.stats, provider)
	h.mu.Unlock()

	metrics.ProviderSuccessRate.WithLabelValues(provider).Set(1)
}

// Restore replaces the provider's averages with a persisted snapshot.
func (h *HealthTracker) Restore(s models.ProviderHealth) {
	if s.SuccessRate < 0 || s.SuccessRate > 1 {
		s.SuccessRate = 1
	}
	h.mu.Lock()
	h.stats[s.ProviderID] = s
	h.mu.Unlock()

	metrics.ProviderSuccessRate.WithLabelValues(s.ProviderID).Set(s.SuccessRate)
}

func (h *HealthTracker) entry(provider string) models.ProviderHealth {
	if s, ok := h.stats[provider]; ok {
		return s
	}
	return models.ProviderHealth{ProviderID: provider, SuccessRate: 1}
}

// healthSuccess decides whether an attempt counts toward a provider's success rate.
//
// The provider answered in every case but a transport, server or parse failure, so a licensing refusal or an
// empty answer still counts as healthy.
func healthSuccess(err error) bool {
	if err == nil {
		return true
	}
	switch shared.Classify(err) {
	case shared.KindNotPlayable, shared.KindNoMatch, shared.KindEmpty:
		return true
	default:
		return false
	}
}
