// YouTube Music [Provider] implementation
//
// Communicates with a ytmusicapi proxy server (default port 8080) that exposes search, stream and
// lyric endpoints as JSON.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

const (
	YouTubeID         = "youtube"
	defaultYTBaseURL  = "http://localhost:8080"
	youtubeKbpsNormal = 128
)

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
	IsAvailable *bool           `json:"isAvailable"`
}

// durationMs prefers duration_seconds and falls back to parsing "m:ss" or "h:mm:ss".
func (t YouTubeTrack) durationMs() int64 {
	if t.DurationSec > 0 {
		return int64(t.DurationSec) * 1000
	}
	var secs int64
	for _, part := range strings.Split(t.Duration, ":") {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0
		}
		secs = secs*60 + n
	}
	return secs * 1000
}

// YouTubeProvider implements [Provider] for YouTube Music via proxy.
type YouTubeProvider struct {
	baseURL string
	http    *transport
}

// NewYouTubeProvider creates a YouTube Music adapter pointed at the proxy in opts.BaseURL.
func NewYouTubeProvider(opts Options) *YouTubeProvider {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	return &YouTubeProvider{baseURL: baseURL, http: newTransport(YouTubeID, opts, nil)}
}

func (y *YouTubeProvider) ID() string { return YouTubeID }

// IsPlayable honors the proxy's isAvailable flag when present.
func (y *YouTubeProvider) IsPlayable(raw json.RawMessage) bool {
	var track YouTubeTrack
	if len(raw) == 0 || json.Unmarshal(raw, &track) != nil {
		return true
	}
	return track.IsAvailable == nil || *track.IsAvailable
}

// Search calls GET /api/search?q={keyword}&filter=songs on the proxy.
func (y *YouTubeProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("filter", "songs")
	params.Set("limit", strconv.Itoa(limitOrDefault(limit)))

	var results []json.RawMessage
	if err := y.http.getJSON(ctx, "search", y.baseURL+"/api/search?"+params.Encode(), &results, nil); err != nil {
		return nil, err
	}

	result := &models.SearchResult{Tracks: make([]models.Track, 0, len(results))}
	for _, raw := range results {
		var yt YouTubeTrack
		if err := json.Unmarshal(raw, &yt); err != nil {
			return nil, y.http.parseError("search", err)
		}
		if yt.VideoID == "" {
			continue
		}

		artists := make([]string, len(yt.Artists))
		for i, a := range yt.Artists {
			artists[i] = a.Name
		}
		album := ""
		if yt.Album != nil {
			album = yt.Album.Name
		}

		track := newTrack(y, yt.VideoID, yt.Title, artists, album, yt.durationMs(), raw)
		if n := len(yt.Thumbnails); n > 0 {
			track.CoverRef = yt.Thumbnails[n-1].URL
		}
		result.Tracks = append(result.Tracks, track)
	}
	if len(result.Tracks) > limitOrDefault(limit) {
		result.Tracks = result.Tracks[:limitOrDefault(limit)]
	}
	result.Total = len(result.Tracks)
	return result, nil
}

// ResolveURL calls GET /api/stream/{videoId}?quality= on the proxy.
func (y *YouTubeProvider) ResolveURL(ctx context.Context, track models.Track, quality models.Quality) (*models.StreamResult, error) {
	if err := checkSource(y, "url", track); err != nil {
		return nil, err
	}

	var resp struct {
		URL     string `json:"url"`
		Bitrate int    `json:"bitrate"`
	}
	endpoint := y.baseURL + "/api/stream/" + url.PathEscape(track.NativeID()) + "?quality=" + url.QueryEscape(string(quality))
	if err := y.http.getJSON(ctx, "url", endpoint, &resp, nil); err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, y.http.notPlayable("url", "proxy returned no stream")
	}
	if resp.Bitrate == 0 {
		resp.Bitrate = youtubeKbpsNormal
	}

	return &models.StreamResult{URL: resp.URL, Bitrate: resp.Bitrate, ResolvedFrom: YouTubeID, TrackID: track.ID}, nil
}

// GetLyric calls GET /api/lyrics/{videoId}. A 404 means the video has no lyrics.
func (y *YouTubeProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	if err := checkSource(y, "lyric", track); err != nil {
		return nil, err
	}

	var resp struct {
		Lyrics string `json:"lyrics"`
	}
	err := y.http.getJSON(ctx, "lyric", y.baseURL+"/api/lyrics/"+url.PathEscape(track.NativeID()), &resp, nil)
	var pe *shared.ProviderError
	switch {
	case errors.As(err, &pe) && pe.Status == 404:
		return &models.Lyric{ResolvedFrom: YouTubeID, TrackID: track.ID}, nil
	case err != nil:
		return nil, err
	}

	return &models.Lyric{Lyric: resp.Lyrics, ResolvedFrom: YouTubeID, TrackID: track.ID}, nil
}
