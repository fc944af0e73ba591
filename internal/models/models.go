package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTrackID = errors.New("track id must be <provider>:<id>")
	ErrMissingTitle   = errors.New("track title is required")
	ErrBadDuration    = errors.New("track duration cannot be negative")
)

// Track is normalized song metadata from a single provider.
type Track struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Artists    []string        `json:"artists"`
	Album      string          `json:"album,omitempty"`
	DurationMs int64           `json:"duration_ms"` // 0 = unknown
	Provider   string          `json:"provider"`
	CoverRef   string          `json:"cover_ref,omitempty"`
	LyricRef   string          `json:"lyric_ref,omitempty"`
	Playable   bool            `json:"playable"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// TrackID builds a provider-namespaced track ID.
func TrackID(provider, nativeID string) string {
	return provider + ":" + nativeID
}

// SplitTrackID splits a namespaced ID into provider and native parts.
func SplitTrackID(id string) (provider, nativeID string, err error) {
	provider, nativeID, ok := strings.Cut(id, ":")
	if !ok || provider == "" || nativeID == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTrackID, id)
	}
	return provider, nativeID, nil
}

// NativeID returns the provider's own identifier for the track.
func (t Track) NativeID() string {
	_, native, found := strings.Cut(t.ID, ":")
	if !found {
		return t.ID
	}
	return native
}

// FirstArtist returns the primary artist, or an empty string.
func (t Track) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// ArtistLine joins artists for display.
func (t Track) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// DecodeTrack unmarshals a track from client-supplied JSON.
//
// A track without a "playable" field is treated as playable so hand-written input still tries the origin first.
func DecodeTrack(data []byte) (Track, error) {
	var probe struct {
		Playable *bool `json:"playable"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Track{}, err
	}

	var t Track
	if err := json.Unmarshal(data, &t); err != nil {
		return Track{}, err
	}
	if probe.Playable == nil {
		t.Playable = true
	}
	return t, nil
}

// Validate checks the normalization invariants.
func (t Track) Validate() error {
	provider, _, err := SplitTrackID(t.ID)
	if err != nil {
		return err
	}
	if provider != t.Provider {
		return fmt.Errorf("%w: id prefix %q does not match provider %q", ErrInvalidTrackID, provider, t.Provider)
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrMissingTitle
	}
	if t.DurationMs < 0 {
		return ErrBadDuration
	}
	return nil
}

// SourceStatus reports how one provider fared during an aggregate search.
type SourceStatus struct {
	Provider string `json:"provider"`
	Count    int    `json:"count"`
	Error    string `json:"error,omitempty"`
	Latency  int64  `json:"latency_ms"`
}

// SearchResult holds tracks in relevance order.
//
// Total is the approximate match count reported upstream. Sources is only populated for aggregate searches.
type SearchResult struct {
	Tracks  []Track        `json:"tracks"`
	Total   int            `json:"total"`
	Sources []SourceStatus `json:"sources,omitempty"`
}

// StreamResult is a resolved playable URL.
type StreamResult struct {
	URL          string `json:"url"`
	Bitrate      int    `json:"bitrate"` // kbps, 0 when unknown
	ResolvedFrom string `json:"resolved_from"`
	TrackID      string `json:"track_id,omitempty"`
	Fallback     bool   `json:"fallback"`
}

// Lyric holds LRC-formatted lyric text. Empty Lyric means the platform had none.
type Lyric struct {
	Lyric        string `json:"lyric"`
	Translated   string `json:"translated,omitempty"`
	ResolvedFrom string `json:"resolved_from,omitempty"`
	TrackID      string `json:"track_id,omitempty"`
}

// Empty reports whether no lyric text is present.
func (l *Lyric) Empty() bool {
	return l == nil || strings.TrimSpace(l.Lyric) == ""
}

// MatchResult is one scored candidate.
type MatchResult struct {
	Candidate Track   `json:"candidate"`
	Score     float64 `json:"score"`
	Title     float64 `json:"title_score"`
	Artist    float64 `json:"artist_score"`
	Duration  float64 `json:"duration_score"`
	Index     int     `json:"index"` // position in the candidate list
}

// ProviderHealth is the rolling health of one provider.
type ProviderHealth struct {
	ProviderID  string        `json:"provider_id"`
	Enabled     bool          `json:"enabled"`
	SuccessRate float64       `json:"success_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
	Samples     int64         `json:"samples"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Quality is the requested stream quality.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigher   Quality = "higher"
	QualityLossless Quality = "lossless"
)

// ParseQuality maps user input onto a [Quality], defaulting to standard.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "128", "128k":
		return QualityStandard, nil
	case "higher", "high", "320", "320k":
		return QualityHigher, nil
	case "lossless", "flac":
		return QualityLossless, nil
	default:
		return "", fmt.Errorf("unknown quality %q", s)
	}
}

// Bitrate is the nominal kbps for the quality.
func (q Quality) Bitrate() int {
	switch q {
	case QualityHigher:
		return 320
	case QualityLossless:
		return 999
	default:
		return 128
	}
}

// Strategy selects how alternate providers are ranked.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyFallback Strategy = "fallback"
	StrategyQuality  Strategy = "quality"
	StrategySpeed    Strategy = "speed"
)

// ParseStrategy maps a config value onto a [Strategy].
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyAuto, StrategyFallback, StrategyQuality, StrategySpeed:
		return st, nil
	case "":
		return StrategyAuto, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// ResolveOp names the resolution being recorded.
type ResolveOp string

const (
	OpURL   ResolveOp = "url"
	OpLyric ResolveOp = "lyric"
)

// Resolution records one orchestrated resolution for the history log.
type Resolution struct {
	ID           string    `json:"id"`
	TrackID      string    `json:"track_id"`
	Title        string    `json:"title"`
	Op           ResolveOp `json:"op"`
	Outcome      string    `json:"outcome"`
	ResolvedFrom string    `json:"resolved_from,omitempty"`
	Attempts     int       `json:"attempts"`
	Err          string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
