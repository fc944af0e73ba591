package repositories

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/desertthunder/songbridge/internal/models"
)

// DefaultRetention is how many resolutions [HistoryRecorder] keeps.
const DefaultRetention = 1000

// HistoryRecorder implements tasks.ResolutionRecorder using ResolutionRepository.
//
// Every pruneEvery inserts the history is trimmed to the newest retain rows.
type HistoryRecorder struct {
	repo       *ResolutionRepository
	retain     int
	pruneEvery int64
	inserted   atomic.Int64
}

// NewHistoryRecorder creates a new HistoryRecorder. A non-positive retain uses [DefaultRetention].
func NewHistoryRecorder(repo *ResolutionRepository, retain int) *HistoryRecorder {
	if retain <= 0 {
		retain = DefaultRetention
	}
	return &HistoryRecorder{repo: repo, retain: retain, pruneEvery: 100}
}

// RecordResolution stores r and occasionally prunes old rows.
func (h *HistoryRecorder) RecordResolution(ctx context.Context, r models.Resolution) error {
	if err := h.repo.Create(ctx, &r); err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}

	if h.inserted.Add(1)%h.pruneEvery == 0 {
		if _, err := h.repo.Prune(ctx, h.retain); err != nil {
			return err
		}
	}
	return nil
}
