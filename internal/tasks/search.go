package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/services"
	"github.com/desertthunder/songbridge/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultSearchLimit is the per-provider result count used when the caller passes none.
const DefaultSearchLimit = 20

// Search implements [Engine].
//
// Every enabled provider is queried concurrently. A provider that fails is reported in Sources and
// contributes no tracks; the search itself only fails on bad input, when nothing is enabled, or when
// ctx is cancelled. Tracks are interleaved round-robin in declaration order and deduplicated by ID.
func (o *Orchestrator) Search(ctx context.Context, keyword string, limit int, progress chan<- ProgressUpdate) (*models.SearchResult, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty keyword", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	var (
		ids       []string
		providers []services.Provider
	)
	for _, id := range o.registry.Enabled() {
		if p, ok := o.provider(id); ok {
			ids = append(ids, id)
			providers = append(providers, p)
		}
	}
	if len(ids) == 0 {
		return nil, shared.ErrNoProviders
	}

	var (
		mu       sync.Mutex
		finished int
		lists    = make([][]models.Track, len(ids))
		sources  = make([]models.SourceStatus, len(ids))
		totals   = make([]int, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			start := time.Now()
			res, err := providers[i].Search(gctx, keyword, limit)

			status := models.SourceStatus{Provider: id, Latency: time.Since(start).Milliseconds()}
			if err != nil {
				status.Error = shared.Classify(err).String()
				o.logger.Debug("provider search failed", "provider", id, "keyword", keyword, "error", err)
			} else {
				lists[i] = res.Tracks
				totals[i] = res.Total
				status.Count = len(res.Tracks)
			}
			sources[i] = status

			mu.Lock()
			finished++
			step := finished
			mu.Unlock()
			sendProgress(progress, fanOutUpdate(step, len(ids), status))
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrCancelled, err)
	}

	result := &models.SearchResult{Tracks: interleave(lists), Sources: sources}
	for _, n := range totals {
		result.Total += n
	}
	o.logger.Debug("aggregate search finished", "keyword", keyword, "providers", len(ids), "tracks", len(result.Tracks))
	return result, nil
}

// interleave merges per-provider lists round-robin, keeping the first occurrence of each track ID.
func interleave(lists [][]models.Track) []models.Track {
	var merged []models.Track
	seen := make(map[string]bool)
	for round := 0; ; round++ {
		progressed := false
		for _, list := range lists {
			if round >= len(list) {
				continue
			}
			progressed = true
			if t := list[round]; !seen[t.ID] {
				seen[t.ID] = true
				merged = append(merged, t)
			}
		}
		if !progressed {
			break
		}
	}
	if merged == nil {
		merged = []models.Track{}
	}
	return merged
}
