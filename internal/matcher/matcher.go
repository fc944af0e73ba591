// Package matcher scores candidate tracks from one provider against a target track from another.
//
// Scoring is pure: identical inputs always yield identical scores and ordering.
package matcher

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

const (
	DefaultMinScore = 0.5

	// artistMatch is the pair similarity an artist pair must exceed to count.
	artistMatch = 0.7
	// substringScore is awarded when one normalized title contains the other.
	substringScore = 0.9
	// unknownDuration is the neutral score when either duration is missing.
	unknownDuration = 0.5

	epsilon = 1e-9
)

// Weights of the composite score.
type Weights struct {
	Title    float64
	Artist   float64
	Duration float64
}

// DefaultWeights returns 0.5 / 0.4 / 0.1.
func DefaultWeights() Weights {
	return Weights{Title: 0.5, Artist: 0.4, Duration: 0.1}
}

// Matcher holds the acceptance threshold and weights.
type Matcher struct {
	weights  Weights
	minScore float64
}

// New creates a matcher. Weights are rescaled to sum to 1 when they don't already.
func New(w Weights, minScore float64) *Matcher {
	if sum := w.Title + w.Artist + w.Duration; sum <= 0 {
		w = DefaultWeights()
	} else if math.Abs(sum-1) > epsilon {
		w = Weights{Title: w.Title / sum, Artist: w.Artist / sum, Duration: w.Duration / sum}
	}
	return &Matcher{weights: w, minScore: minScore}
}

// Default returns a matcher with default weights and threshold.
func Default() *Matcher {
	return New(DefaultWeights(), DefaultMinScore)
}

// FromConfig builds a matcher from [shared.MatcherConfig].
func FromConfig(cfg shared.MatcherConfig) *Matcher {
	return New(Weights{Title: cfg.TitleWeight, Artist: cfg.ArtistWeight, Duration: cfg.DurationWeight}, cfg.MinScore)
}

// MinScore returns the acceptance threshold.
func (m *Matcher) MinScore() float64 { return m.minScore }

// Accepts reports whether score clears the threshold.
func (m *Matcher) Accepts(score float64) bool {
	return score+epsilon >= m.minScore
}

// Score computes the composite and sub-scores for one candidate.
func (m *Matcher) Score(target, candidate models.Track) models.MatchResult {
	title := TitleScore(target.Title, candidate.Title)
	artist := ArtistScore(target.Artists, candidate.Artists)
	duration := DurationScore(target.DurationMs, candidate.DurationMs)

	composite := m.weights.Title*title + m.weights.Artist*artist + m.weights.Duration*duration
	return models.MatchResult{
		Candidate: candidate,
		Score:     clamp(composite),
		Title:     title,
		Artist:    artist,
		Duration:  duration,
	}
}

// Rank scores every candidate and sorts them by descending score, keeping input order on ties.
func (m *Matcher) Rank(target models.Track, candidates []models.Track) []models.MatchResult {
	results := make([]models.MatchResult, len(candidates))
	for i, c := range candidates {
		results[i] = m.Score(target, c)
		results[i].Index = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// Best returns the top-ranked candidate if it clears the threshold.
//
// The error wraps [shared.ErrNoMatch] when nothing qualifies.
func (m *Matcher) Best(target models.Track, candidates []models.Track) (models.MatchResult, error) {
	ranked := m.Rank(target, candidates)
	if len(ranked) == 0 {
		return models.MatchResult{}, fmt.Errorf("%w: no candidates", shared.ErrNoMatch)
	}
	if !m.Accepts(ranked[0].Score) {
		return ranked[0], fmt.Errorf("%w: best score %.3f below %.2f", shared.ErrNoMatch, ranked[0].Score, m.minScore)
	}
	return ranked[0], nil
}

// TitleScore compares two titles.
//
// Identical folded titles score 1. A folded title containing the other, or matching qualifier-free cores,
// score 0.9. Anything else gets the edit-distance similarity of the cores.
func TitleScore(a, b string) float64 {
	fa, fb := fold(a), fold(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}

	ca, cb := core(a), core(b)
	if strings.Contains(fa, fb) || strings.Contains(fb, fa) || strings.Contains(ca, cb) || strings.Contains(cb, ca) {
		return substringScore
	}
	return similarity(ca, cb)
}

// ArtistScore sums the similarities of artist pairs above 0.7 and divides by the larger artist count.
// Two tracks that both lack artists agree fully; one missing side scores 0.
func ArtistScore(target, candidate []string) float64 {
	ta, ca := splitArtists(target), splitArtists(candidate)
	switch {
	case len(ta) == 0 && len(ca) == 0:
		return 1
	case len(ta) == 0 || len(ca) == 0:
		return 0
	}

	var matched float64
	for _, t := range ta {
		for _, c := range ca {
			if sim := similarity(core(t), core(c)); sim > artistMatch {
				matched += sim
			}
		}
	}
	return clamp(matched / float64(max(len(ta), len(ca))))
}

// DurationScore buckets the absolute difference in seconds.
func DurationScore(aMs, bMs int64) float64 {
	if aMs <= 0 || bMs <= 0 {
		return unknownDuration
	}

	diff := math.Abs(float64(aMs-bMs)) / 1000
	switch {
	case diff <= 3:
		return 1.0
	case diff <= 10:
		return 0.9
	case diff <= 30:
		return 0.7
	case diff <= 60:
		return 0.5
	default:
		return 0.3
	}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
