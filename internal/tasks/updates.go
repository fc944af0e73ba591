package tasks

import (
	"fmt"

	"github.com/desertthunder/songbridge/internal/models"
)

// ProgressUpdate represents a progress event during a resolution or aggregate search.
//
// Used to send real-time updates to the CLI or server layer for display.
type ProgressUpdate struct {
	Phase    Phase  // State the resolution is in
	Provider string // Provider being contacted, if any
	Step     int    // Current provider number within the resolution
	Total    int    // Providers eligible for this resolution
	Message  string // Human-readable message for display
	Data     any    // Optional phase-specific data (e.g. the matched candidate)
}

// Phase enumerates the states of the fallback machine, plus the aggregate search fan-out.
type Phase int

const (
	TryOriginal Phase = iota
	SearchAlternates
	TryAlternate
	Done
	Failed
	FanOut
)

func (p Phase) String() string {
	switch p {
	case TryOriginal:
		return "try_original"
	case SearchAlternates:
		return "search_alternates"
	case TryAlternate:
		return "try_alternate"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case FanOut:
		return "fan_out"
	default:
		return ""
	}
}

func tryOriginalUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:    TryOriginal,
		Provider: track.Provider,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("Trying %s on %s...", track.Title, track.Provider),
	}
}

func searchAlternateUpdate(step, total int, provider, query string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    SearchAlternates,
		Provider: provider,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] Searching %s for %q...", step, total, provider, query),
	}
}

func noMatchUpdate(step, total int, provider string) ProgressUpdate {
	return ProgressUpdate{
		Phase:    SearchAlternates,
		Provider: provider,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] No equivalent on %s", step, total, provider),
	}
}

func tryAlternateUpdate(step, total int, match models.MatchResult) ProgressUpdate {
	c := match.Candidate
	return ProgressUpdate{
		Phase:    TryAlternate,
		Provider: c.Provider,
		Step:     step,
		Total:    total,
		Message:  fmt.Sprintf("[%d/%d] Trying %s - %s on %s (score %.2f)...", step, total, c.ArtistLine(), c.Title, c.Provider, match.Score),
		Data:     match,
	}
}

func doneUpdate(step, total int, provider string, fallback bool) ProgressUpdate {
	msg := fmt.Sprintf("✓ Resolved on %s", provider)
	if fallback {
		msg += " (fallback)"
	}
	return ProgressUpdate{Phase: Done, Provider: provider, Step: step, Total: total, Message: msg}
}

func failedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{Phase: Failed, Step: step, Total: total, Message: fmt.Sprintf("✗ %v", err)}
}

func fanOutUpdate(step, total int, status models.SourceStatus) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] %s: %d results", step, total, status.Provider, status.Count)
	if status.Error != "" {
		msg = fmt.Sprintf("[%d/%d] %s: %s", step, total, status.Provider, status.Error)
	}
	return ProgressUpdate{Phase: FanOut, Provider: status.Provider, Step: step, Total: total, Message: msg, Data: status}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
