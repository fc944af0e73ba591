package services

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanText strips HTML tags and entities and collapses whitespace.
//
// Search endpoints highlight matches with markup such as <em> that must not leak into titles.
func CleanText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SplitArtists splits a combined artist string on the separators platforms use.
//
// Markup is removed before splitting so the slash of a closing tag is never taken as a separator.
func SplitArtists(s string) []string {
	s = html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '、' || r == '/' || r == ';' || r == '&'
	})

	artists := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = CleanText(f); f != "" {
			artists = append(artists, f)
		}
	}
	return artists
}

func cleanAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = CleanText(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// newTrack builds a normalized track and evaluates playability once.
func newTrack(p Provider, nativeID, title string, artists []string, album string, durationMs int64, raw json.RawMessage) models.Track {
	if durationMs < 0 {
		durationMs = 0
	}
	return models.Track{
		ID:         models.TrackID(p.ID(), nativeID),
		Title:      CleanText(title),
		Artists:    cleanAll(artists),
		Album:      CleanText(album),
		DurationMs: durationMs,
		Provider:   p.ID(),
		Playable:   p.IsPlayable(raw),
		Raw:        raw,
	}
}

// checkSource rejects tracks that belong to another provider.
func checkSource(p Provider, op string, track models.Track) error {
	var err error
	switch {
	case track.Provider != p.ID():
		err = fmt.Errorf("%w: %s track sent to %s", shared.ErrSourceMismatch, track.Provider, p.ID())
	case track.NativeID() == "":
		err = fmt.Errorf("%w: empty native id", shared.ErrSourceMismatch)
	default:
		return nil
	}
	return shared.NewProviderError(p.ID(), op, shared.KindRejected, err)
}

// flexInt decodes numbers that upstreams sometimes send as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexInt(v)
	return nil
}

// formatLRCTime renders seconds as an LRC timestamp.
func formatLRCTime(secs float64) string {
	if secs < 0 {
		secs = 0
	}
	m := int(secs) / 60
	s := int(secs) % 60
	cs := int((secs - float64(int(secs))) * 100)
	return fmt.Sprintf("[%02d:%02d.%02d]", m, s, cs)
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 10
	}
	return min(limit, 50)
}
