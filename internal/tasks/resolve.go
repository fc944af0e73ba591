package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/services"
	"github.com/desertthunder/songbridge/internal/shared"
)

// operation describes one resolvable operation to the fallback machine.
type operation[T any] struct {
	op models.ResolveOp

	// skipUnplayable skips the origin call and drops unplayable candidates.
	skipUnplayable bool

	call  func(ctx context.Context, p services.Provider, t models.Track) (T, error)
	empty func(T) bool

	// finish copies a (possibly cached, shared) value and stamps the provenance fields.
	finish func(v T, provider string, t models.Track, fallback bool) T
}

// outcome is a successful resolution.
type outcome[T any] struct {
	value    T
	provider string
	fallback bool
	attempts []Attempt
}

// ResolveURL implements [Engine].
//
// Unplayable origin tracks go straight to alternate search. The result is a fresh copy with
// ResolvedFrom and Fallback set.
func (o *Orchestrator) ResolveURL(ctx context.Context, track models.Track, quality models.Quality, progress chan<- ProgressUpdate) (*models.StreamResult, error) {
	op := operation[*models.StreamResult]{
		op:             models.OpURL,
		skipUnplayable: true,
		call: func(ctx context.Context, p services.Provider, t models.Track) (*models.StreamResult, error) {
			return p.ResolveURL(ctx, t, quality)
		},
		empty: func(v *models.StreamResult) bool { return v == nil || v.URL == "" },
		finish: func(v *models.StreamResult, provider string, t models.Track, fallback bool) *models.StreamResult {
			out := *v
			out.ResolvedFrom = provider
			out.TrackID = t.ID
			out.Fallback = fallback
			return &out
		},
	}

	res, err := resolve(ctx, o, track, op, progress)
	if err != nil {
		return nil, err
	}
	return res.value, nil
}

// ResolveLyric implements [Engine].
//
// Playability does not apply to lyrics. An empty lyric counts as a miss and moves on to alternates;
// when every provider comes back empty the result is an empty lyric and no error.
func (o *Orchestrator) ResolveLyric(ctx context.Context, track models.Track, progress chan<- ProgressUpdate) (*models.Lyric, error) {
	op := operation[*models.Lyric]{
		op: models.OpLyric,
		call: func(ctx context.Context, p services.Provider, t models.Track) (*models.Lyric, error) {
			return p.GetLyric(ctx, t)
		},
		empty: func(v *models.Lyric) bool { return v.Empty() },
		finish: func(v *models.Lyric, provider string, t models.Track, _ bool) *models.Lyric {
			out := *v
			out.ResolvedFrom = provider
			out.TrackID = t.ID
			return &out
		},
	}

	res, err := resolve(ctx, o, track, op, progress)
	if err == nil {
		return res.value, nil
	}

	var rerr *ResolveError
	if errors.As(err, &rerr) && onlyMisses(rerr.Attempts) {
		return &models.Lyric{TrackID: track.ID}, nil
	}
	return nil, err
}

// onlyMisses reports whether every attempt ended without a failure: empty answers or no match.
func onlyMisses(attempts []Attempt) bool {
	for _, a := range attempts {
		if a.Kind != shared.KindEmpty && a.Kind != shared.KindNoMatch {
			return false
		}
	}
	return true
}

// resolve runs the fallback state machine for one track.
//
//	TryOriginal -> Done | SearchAlternates
//	SearchAlternates -> TryAlternate | SearchAlternates (next provider) | Failed (pool exhausted)
//	TryAlternate -> Done | SearchAlternates (provider removed from pool)
//
// Each provider is contacted at most once per resolution, the origin included. Cancellation aborts
// from any state and is returned as is.
func resolve[T any](ctx context.Context, o *Orchestrator, track models.Track, op operation[T], progress chan<- ProgressUpdate) (outcome[T], error) {
	var zero outcome[T]
	if err := track.Validate(); err != nil {
		return zero, fmt.Errorf("%w: %w", shared.ErrInvalidTrack, err)
	}

	logger := o.logger.With("op", op.op, "track", track.ID)
	tried := map[string]bool{track.Provider: true}
	total := len(o.registry.Enabled())
	if !o.registry.IsEnabled(track.Provider) {
		total++
	}

	var (
		attempts []Attempt
		match    models.MatchResult
		alt      string
		step     int
		phase    = TryOriginal
	)

	fail := func(p Phase, provider, trackID string, score float64, err error) {
		a := Attempt{Provider: provider, Phase: p, TrackID: trackID, Score: score, Kind: shared.Classify(err), Err: err}
		attempts = append(attempts, a)
		logger.Debug("resolution attempt failed", "phase", p, "provider", provider, "kind", a.Kind, "error", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return zero, o.cancelled(ctx, track, op.op, attempts, err)
		}

		switch phase {
		case TryOriginal:
			step++
			sendProgress(progress, tryOriginalUpdate(step, total, track))

			p, ok := o.provider(track.Provider)
			switch {
			case !ok:
				fail(TryOriginal, track.Provider, track.ID, 0, shared.NewProviderError(track.Provider, string(op.op), shared.KindRejected, shared.ErrUnknownProvider))
			case !o.registry.IsEnabled(track.Provider):
				fail(TryOriginal, track.Provider, track.ID, 0, shared.NewProviderError(track.Provider, string(op.op), shared.KindRejected, errProviderDisabled))
			case op.skipUnplayable && !track.Playable:
				fail(TryOriginal, track.Provider, track.ID, 0, shared.NewProviderError(track.Provider, string(op.op), shared.KindNotPlayable, nil))
			default:
				v, err := op.call(ctx, p, track)
				if err == nil && !op.empty(v) {
					o.succeeded(ctx, track, op.op, track.Provider, false, len(attempts), step, total, progress)
					return outcome[T]{value: op.finish(v, track.Provider, track, false), provider: track.Provider, attempts: attempts}, nil
				}
				if isCancelled(err) {
					return zero, o.cancelled(ctx, track, op.op, attempts, err)
				}
				if err == nil {
					err = shared.NewProviderError(track.Provider, string(op.op), shared.KindEmpty, nil)
				}
				fail(TryOriginal, track.Provider, track.ID, 0, err)
			}
			phase = SearchAlternates

		case SearchAlternates:
			pool := o.rank(tried)
			if len(pool) == 0 {
				phase = Failed
				continue
			}

			id := pool[0]
			tried[id] = true
			step++

			query := alternateQuery(track)
			sendProgress(progress, searchAlternateUpdate(step, total, id, query))

			p, _ := o.provider(id)
			res, err := p.Search(ctx, query, o.searchLimit)
			if err != nil {
				if isCancelled(err) {
					return zero, o.cancelled(ctx, track, op.op, attempts, err)
				}
				fail(SearchAlternates, id, "", 0, err)
				continue
			}

			candidates := res.Tracks
			if op.skipUnplayable {
				candidates = playableOnly(candidates)
			}

			best, err := o.matcher.Best(track, candidates)
			if err != nil {
				sendProgress(progress, noMatchUpdate(step, total, id))
				fail(SearchAlternates, id, "", best.Score, err)
				continue
			}

			match, alt = best, id
			phase = TryAlternate

		case TryAlternate:
			c := match.Candidate
			sendProgress(progress, tryAlternateUpdate(step, total, match))

			p, _ := o.provider(alt)
			v, err := op.call(ctx, p, c)
			if err == nil && !op.empty(v) {
				logger.Info("resolved via fallback", "provider", alt, "candidate", c.ID, "score", match.Score)
				o.succeeded(ctx, track, op.op, alt, true, len(attempts), step, total, progress)
				return outcome[T]{value: op.finish(v, alt, c, true), provider: alt, fallback: true, attempts: attempts}, nil
			}
			if isCancelled(err) {
				return zero, o.cancelled(ctx, track, op.op, attempts, err)
			}
			if err == nil {
				err = shared.NewProviderError(alt, string(op.op), shared.KindEmpty, nil)
			}
			fail(TryAlternate, alt, c.ID, match.Score, err)
			phase = SearchAlternates

		case Failed:
			rerr := newResolveError(track, op.op, attempts)
			sendProgress(progress, failedUpdate(step, total, rerr.Reason))
			logger.Warn("resolution failed", "reason", rerr.Reason, "attempts", len(attempts))

			outcomeLabel := "failed"
			if op.op == models.OpLyric && onlyMisses(attempts) {
				outcomeLabel = "empty"
			}
			o.record(ctx, models.Resolution{
				TrackID: track.ID, Title: track.Title, Op: op.op, Outcome: outcomeLabel,
				Attempts: len(attempts), Err: rerr.Reason.Error(),
			})
			return zero, rerr
		}
	}
}

var errProviderDisabled = fmt.Errorf("provider disabled")

func (o *Orchestrator) succeeded(ctx context.Context, track models.Track, op models.ResolveOp, provider string, fallback bool, failures, step, total int, progress chan<- ProgressUpdate) {
	sendProgress(progress, doneUpdate(step, total, provider, fallback))

	outcome := "ok"
	if fallback {
		outcome = "fallback"
	}
	o.record(ctx, models.Resolution{
		TrackID: track.ID, Title: track.Title, Op: op, Outcome: outcome,
		ResolvedFrom: provider, Attempts: failures + 1,
	})
}

// cancelled records an aborted resolution and returns an error matching [shared.ErrCancelled].
func (o *Orchestrator) cancelled(ctx context.Context, track models.Track, op models.ResolveOp, attempts []Attempt, cause error) error {
	o.record(ctx, models.Resolution{
		TrackID: track.ID, Title: track.Title, Op: op, Outcome: "cancelled", Attempts: len(attempts),
	})
	if errors.Is(cause, shared.ErrCancelled) {
		return cause
	}
	return fmt.Errorf("%w: %w", shared.ErrCancelled, cause)
}

func isCancelled(err error) bool {
	return err != nil && shared.Classify(err) == shared.KindCancelled
}

// alternateQuery is the keyword used to look for track elsewhere: title and first artist.
func alternateQuery(track models.Track) string {
	return strings.TrimSpace(track.Title + " " + track.FirstArtist())
}

func playableOnly(tracks []models.Track) []models.Track {
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.Playable {
			out = append(out, t)
		}
	}
	return out
}
