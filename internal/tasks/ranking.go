package tasks

import (
	"sort"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
)

// Weights of the auto strategy score.
const (
	autoSuccessWeight = 0.4
	autoSpeedWeight   = 0.3
	autoQualityWeight = 0.3
)

// candidateStats is the ranking input for one provider.
type candidateStats struct {
	ID            string
	SuccessRate   float64
	AvgLatency    time.Duration // zero when no samples yet
	QualityWeight float64
}

// rankProviders orders candidates, given in declaration order, by strategy.
//
// Every ordering is a stable sort so ties keep declaration order.
func rankProviders(strategy models.Strategy, candidates []candidateStats) []string {
	ranked := append([]candidateStats(nil), candidates...)

	switch strategy {
	case models.StrategyFallback:
	case models.StrategyQuality:
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].QualityWeight > ranked[j].QualityWeight })
	case models.StrategySpeed:
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].AvgLatency < ranked[j].AvgLatency })
	default:
		scores := autoScores(ranked)
		sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i].ID] > scores[ranked[j].ID] })
	}

	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.ID
	}
	return ids
}

// autoScores computes 0.4·successRate + 0.3·speed + 0.3·qualityWeight.
//
// Speed is the fastest known latency divided by the provider's own, so the fastest scores 1.
// Providers without samples score 1 as well.
func autoScores(candidates []candidateStats) map[string]float64 {
	var fastest time.Duration
	for _, c := range candidates {
		if c.AvgLatency > 0 && (fastest == 0 || c.AvgLatency < fastest) {
			fastest = c.AvgLatency
		}
	}

	scores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		speed := 1.0
		if c.AvgLatency > 0 && fastest > 0 {
			speed = float64(fastest) / float64(c.AvgLatency)
		}
		scores[c.ID] = autoSuccessWeight*c.SuccessRate + autoSpeedWeight*speed + autoQualityWeight*c.QualityWeight
	}
	return scores
}
