package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

func TestYouTubeProvider(t *testing.T) {
	ctx := context.Background()
	track := models.Track{ID: "youtube:v1", Provider: YouTubeID}

	t.Run("NewYouTubeProvider", func(t *testing.T) {
		t.Run("creates provider with default URL", func(t *testing.T) {
			if p := NewYouTubeProvider(Options{}); p.baseURL != defaultYTBaseURL {
				t.Errorf("expected baseURL to be %s, got %s", defaultYTBaseURL, p.baseURL)
			}
		})

		t.Run("creates provider with custom URL", func(t *testing.T) {
			if p := NewYouTubeProvider(Options{BaseURL: "http://localhost:9000/"}); p.baseURL != "http://localhost:9000" {
				t.Errorf("expected trimmed baseURL, got %s", p.baseURL)
			}
		})
	})

	t.Run("Search", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/api/search": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("filter") != "songs" || r.URL.Query().Get("q") != "晴天 周杰伦" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				writeJSON(w, []map[string]any{
					{
						"videoId": "v1", "title": "晴天", "duration": "4:29",
						"artists":    []map[string]any{{"name": "Jay Chou", "id": "UC1"}},
						"album":      map[string]any{"name": "Ye Hui Mei"},
						"thumbnails": []map[string]any{{"url": "small"}, {"url": "large"}},
					},
					{"videoId": "v2", "title": "Gone", "duration_seconds": 100, "isAvailable": false},
					{"videoId": "", "title": "Episode"},
				})
			},
		})
		res, err := NewYouTubeProvider(Options{BaseURL: server.URL}).Search(ctx, "晴天 周杰伦", 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(res.Tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(res.Tracks))
		}
		got := res.Tracks[0]
		if got.ID != "youtube:v1" || got.DurationMs != 269000 || got.Album != "Ye Hui Mei" || got.CoverRef != "large" {
			t.Errorf("unexpected track %+v", got)
		}
		if res.Tracks[1].DurationMs != 100000 || res.Tracks[1].Playable {
			t.Errorf("unexpected second track %+v", res.Tracks[1])
		}
	})

	t.Run("ResolveURL", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/api/stream/v1": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("quality") != "higher" {
					t.Errorf("unexpected quality %s", r.URL.Query().Get("quality"))
				}
				writeJSON(w, map[string]any{"url": "https://rr1.googlevideo.com/x", "bitrate": 160})
			},
		})
		res, err := NewYouTubeProvider(Options{BaseURL: server.URL}).ResolveURL(ctx, track, models.QualityHigher)
		if err != nil {
			t.Fatalf("ResolveURL failed: %v", err)
		}
		if res.URL != "https://rr1.googlevideo.com/x" || res.Bitrate != 160 || res.ResolvedFrom != YouTubeID {
			t.Errorf("unexpected stream %+v", res)
		}
	})

	t.Run("ResolveURL without stream is not playable", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/api/stream/v1": func(w http.ResponseWriter, r *http.Request) { writeJSON(w, map[string]any{}) },
		})
		_, err := NewYouTubeProvider(Options{BaseURL: server.URL}).ResolveURL(ctx, track, models.QualityStandard)
		if !errors.Is(err, shared.ErrNotPlayable) {
			t.Errorf("expected ErrNotPlayable, got %v", err)
		}
	})

	t.Run("GetLyric", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/api/lyrics/v1": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"lyrics": "故事的小黄花"})
			},
		})
		lyric, err := NewYouTubeProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if err != nil || lyric.Lyric != "故事的小黄花" {
			t.Errorf("unexpected lyric %+v (err %v)", lyric, err)
		}
	})

	t.Run("GetLyric treats 404 as no lyric", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/api/lyrics/v1": func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		})
		lyric, err := NewYouTubeProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if err != nil || !lyric.Empty() {
			t.Errorf("expected empty lyric, got %+v (err %v)", lyric, err)
		}
	})

	t.Run("proxy outage is retryable", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/api/lyrics/v1": func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
		})
		_, err := NewYouTubeProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if !shared.IsRetryable(err) {
			t.Errorf("expected retryable error, got %v", err)
		}
	})
}
