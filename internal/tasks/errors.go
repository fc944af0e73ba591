package tasks

import (
	"fmt"
	"strings"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

// Terminal outcomes of a failed resolution. [ResolveError] unwraps to exactly one of them.
var (
	ErrTryLater     = fmt.Errorf("temporarily unavailable, try again later")
	ErrUnavailable  = fmt.Errorf("unavailable due to licensing")
	ErrNoEquivalent = fmt.Errorf("no equivalent track on another provider")
)

// Attempt records what happened on one provider during a resolution.
type Attempt struct {
	Provider string           `json:"provider"`
	Phase    Phase            `json:"-"`
	TrackID  string           `json:"track_id,omitempty"` // track tried; empty when the search found nothing
	Score    float64          `json:"score,omitempty"`
	Kind     shared.ErrorKind `json:"-"`
	Err      error            `json:"-"`
}

func (a Attempt) String() string {
	return a.Provider + ":" + a.Kind.String()
}

// ResolveError is returned once the origin and every eligible alternate have been exhausted.
type ResolveError struct {
	TrackID  string
	Op       models.ResolveOp
	Attempts []Attempt
	Reason   error
}

func (e *ResolveError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return fmt.Sprintf("resolve %s for %s: %v [%s]", e.Op, e.TrackID, e.Reason, strings.Join(parts, ", "))
}

func (e *ResolveError) Unwrap() error { return e.Reason }

// newResolveError picks the user-facing reason from the attempt history.
//
// Any transient failure means a retry could succeed. Otherwise a licensing failure wins when the origin or a
// matched alternate refused to play, or when there was nothing to fall back to. The rest is "no equivalent".
func newResolveError(track models.Track, op models.ResolveOp, attempts []Attempt) *ResolveError {
	reason := ErrNoEquivalent
	alternates, notPlayable, transient := 0, false, false
	for _, a := range attempts {
		if a.Phase != TryOriginal {
			alternates++
		}
		switch {
		case a.Kind.Transient():
			transient = true
		case a.Kind == shared.KindNotPlayable:
			notPlayable = true
		}
	}

	switch {
	case transient:
		reason = ErrTryLater
	case notPlayable, alternates == 0:
		reason = ErrUnavailable
	}
	return &ResolveError{TrackID: track.ID, Op: op, Attempts: attempts, Reason: reason}
}
