package services

import (
	"fmt"
	"sync"

	"github.com/desertthunder/songbridge/internal/shared"
)

// ProviderInfo is the registry's view of one provider.
type ProviderInfo struct {
	ID            string  `json:"id"`
	Enabled       bool    `json:"enabled"`
	QualityWeight float64 `json:"quality_weight"`
}

type registration struct {
	provider Provider
	info     ProviderInfo
}

// Registry holds every provider in declaration order along with its enabled flag and static quality weight.
//
// It is built once at startup and passed to the orchestrator; it is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register appends p to the declaration order.
func (r *Registry) Register(p Provider, enabled bool, qualityWeight float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateProvider, id)
	}
	if qualityWeight < 0 || qualityWeight > 1 {
		return fmt.Errorf("%w: quality weight for %s must be within [0,1]", shared.ErrInvalidArgument, id)
	}

	r.entries[id] = &registration{
		provider: p,
		info:     ProviderInfo{ID: id, Enabled: enabled, QualityWeight: qualityWeight},
	}
	r.order = append(r.order, id)
	return nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	return e.provider, nil
}

// Info returns the registry's view of id.
func (r *Registry) Info(id string) (ProviderInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return ProviderInfo{}, fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	return e.info, nil
}

// IDs returns every provider ID in declaration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Enabled returns enabled provider IDs in declaration order.
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, id := range r.order {
		if r.entries[id].info.Enabled {
			ids = append(ids, id)
		}
	}
	return ids
}

// IsEnabled reports whether id is registered and enabled.
func (r *Registry) IsEnabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && e.info.Enabled
}

// SetEnabled toggles a provider.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnknownProvider, id)
	}
	e.info.Enabled = enabled
	return nil
}

// QualityWeight returns the static quality weight of id, or 0 when unknown.
func (r *Registry) QualityWeight(id string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.info.QualityWeight
	}
	return 0
}

// List returns every provider's info in declaration order.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, r.entries[id].info)
	}
	return infos
}
