// Spotify Web API [Provider] implementation
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
//
// Only 30 second previews are reachable without a user session, so Spotify ranks last by default.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

const (
	SpotifyID       = "spotify"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
	previewBitrate  = 96
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	PreviewURL  *string         `json:"preview_url"`
	IsPlayable  *bool           `json:"is_playable"` // only present with a market parameter
	URI         string          `json:"uri"`
}

func (t SpotifyTrack) preview() string {
	if t.PreviewURL == nil {
		return ""
	}
	return *t.PreviewURL
}

// SpotifyProvider implements [Provider] for Spotify using the client credentials flow.
type SpotifyProvider struct {
	baseURL string
	http    *transport
}

// NewSpotifyProvider creates a Spotify adapter. Both client ID and secret are required.
func NewSpotifyProvider(opts Options) (*SpotifyProvider, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify requires client_id and client_secret", shared.ErrMissingCredentials)
	}

	baseURL, tokenURL := spotifyBaseURL, spotifyTokenURL
	if opts.BaseURL != "" {
		baseURL, tokenURL = opts.BaseURL+"/v1", opts.BaseURL+"/api/token"
	}

	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: defaultTimeout}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	opts.HTTPClient = config.Client(ctx)
	opts.HTTPClient.Timeout = base.Timeout

	return &SpotifyProvider{baseURL: baseURL, http: newTransport(SpotifyID, opts, nil)}, nil
}

func (s *SpotifyProvider) ID() string { return SpotifyID }

// IsPlayable requires a preview URL and, when the market flag is present, is_playable.
func (s *SpotifyProvider) IsPlayable(raw json.RawMessage) bool {
	var track SpotifyTrack
	if len(raw) == 0 || json.Unmarshal(raw, &track) != nil {
		return true
	}
	if track.IsPlayable != nil && !*track.IsPlayable {
		return false
	}
	return track.preview() != ""
}

// Search calls GET /v1/search with type=track.
func (s *SpotifyProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", keyword)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limitOrDefault(limit)))

	var resp struct {
		Tracks struct {
			Items []json.RawMessage `json:"items"`
			Total int               `json:"total"`
		} `json:"tracks"`
	}
	if err := s.http.getJSON(ctx, "search", s.baseURL+"/search?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}

	result := &models.SearchResult{
		Tracks: make([]models.Track, 0, len(resp.Tracks.Items)),
		Total:  resp.Tracks.Total,
	}
	for _, raw := range resp.Tracks.Items {
		var st SpotifyTrack
		if err := json.Unmarshal(raw, &st); err != nil {
			return nil, s.http.parseError("search", err)
		}
		result.Tracks = append(result.Tracks, s.toTrack(st, raw))
	}
	return result, nil
}

func (s *SpotifyProvider) toTrack(st SpotifyTrack, raw json.RawMessage) models.Track {
	artists := make([]string, len(st.Artists))
	for i, a := range st.Artists {
		artists[i] = a.Name
	}
	track := newTrack(s, st.ID, st.Name, artists, st.Album.Name, int64(st.DurationMS), raw)
	if len(st.Album.Images) > 0 {
		track.CoverRef = st.Album.Images[0].URL
	}
	return track
}

// ResolveURL returns the track's preview clip, fetching /v1/tracks/{id} when the raw record lacks it.
func (s *SpotifyProvider) ResolveURL(ctx context.Context, track models.Track, _ models.Quality) (*models.StreamResult, error) {
	if err := checkSource(s, "url", track); err != nil {
		return nil, err
	}

	var st SpotifyTrack
	if len(track.Raw) == 0 || json.Unmarshal(track.Raw, &st) != nil || st.preview() == "" {
		if err := s.http.getJSON(ctx, "url", s.baseURL+"/tracks/"+url.PathEscape(track.NativeID()), &st, nil); err != nil {
			return nil, err
		}
	}
	if st.preview() == "" {
		return nil, s.http.notPlayable("url", "no preview available")
	}

	return &models.StreamResult{URL: st.preview(), Bitrate: previewBitrate, ResolvedFrom: SpotifyID, TrackID: track.ID}, nil
}

// GetLyric always returns an empty lyric; the Web API exposes none.
func (s *SpotifyProvider) GetLyric(_ context.Context, track models.Track) (*models.Lyric, error) {
	if err := checkSource(s, "lyric", track); err != nil {
		return nil, err
	}
	return &models.Lyric{ResolvedFrom: SpotifyID, TrackID: track.ID}, nil
}
