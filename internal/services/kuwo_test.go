package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

func TestKuwoProvider(t *testing.T) {
	ctx := context.Background()
	track := models.Track{ID: "kuwo:228908", Provider: KuwoID}

	t.Run("Search", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/search/searchMusicBykeyWord": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("all") != "晴天" {
					t.Errorf("unexpected keyword %s", r.URL.Query().Get("all"))
				}
				if r.Header.Get("User-Agent") != kuwoUserAgent {
					t.Errorf("expected kuwo user agent, got %s", r.Header.Get("User-Agent"))
				}
				writeJSON(w, map[string]any{
					"TOTAL": "2",
					"abslist": []map[string]any{
						{"MUSICRID": "MUSIC_228908", "SONGNAME": "晴天", "ARTIST": "周杰伦", "ALBUM": "叶惠美", "DURATION": "269", "bitSwitch": "1"},
						{"MUSICRID": "MUSIC_1", "SONGNAME": "Blocked", "ARTIST": "X&Y", "DURATION": "100", "bitSwitch": 0},
						{"MUSICRID": "", "SONGNAME": "Broken"},
					},
				})
			},
		})
		res, err := NewKuwoProvider(Options{BaseURL: server.URL}).Search(ctx, "晴天", 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(res.Tracks) != 2 || res.Total != 2 {
			t.Fatalf("expected 2 tracks, got %d (total %d)", len(res.Tracks), res.Total)
		}
		got := res.Tracks[0]
		if got.ID != "kuwo:228908" || got.DurationMs != 269000 || got.FirstArtist() != "周杰伦" {
			t.Errorf("unexpected track %+v", got)
		}
		if len(res.Tracks[1].Artists) != 2 {
			t.Errorf("expected split artists, got %v", res.Tracks[1].Artists)
		}
		if !got.Playable || res.Tracks[1].Playable {
			t.Error("expected bitSwitch 0 to be unplayable")
		}
	})

	t.Run("ResolveURL", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/mobi.s": func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("br") != "2000kflac" || q.Get("rid") != "228908" || q.Get("type") != "convert_url_with_sign" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				writeJSON(w, map[string]any{"code": 200, "data": map[string]any{"url": "http://kw.cdn/a.flac", "bitrate": 2000, "format": "flac"}})
			},
		})
		res, err := NewKuwoProvider(Options{BaseURL: server.URL}).ResolveURL(ctx, track, models.QualityLossless)
		if err != nil {
			t.Fatalf("ResolveURL failed: %v", err)
		}
		if res.URL != "http://kw.cdn/a.flac" || res.Bitrate != 2000 {
			t.Errorf("unexpected stream %+v", res)
		}
	})

	t.Run("ResolveURL without url is not playable", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/mobi.s": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"code": 403, "data": map[string]any{}})
			},
		})
		_, err := NewKuwoProvider(Options{BaseURL: server.URL}).ResolveURL(ctx, track, models.QualityStandard)
		if !errors.Is(err, shared.ErrNotPlayable) {
			t.Errorf("expected ErrNotPlayable, got %v", err)
		}
	})

	t.Run("GetLyric renders LRC", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/newh5/singles/songinfoandlrc": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("musicId") != "228908" {
					t.Errorf("unexpected musicId %s", r.URL.Query().Get("musicId"))
				}
				writeJSON(w, map[string]any{"status": 200, "data": map[string]any{"lrclist": []map[string]any{
					{"time": "1.5", "lineLyric": "故事的小黄花"},
					{"time": "bogus", "lineLyric": "skipped"},
					{"time": "62.25", "lineLyric": "从出生那年就飘着"},
				}}})
			},
		})
		lyric, err := NewKuwoProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if err != nil {
			t.Fatalf("GetLyric failed: %v", err)
		}
		want := "[00:01.50]故事的小黄花\n[01:02.25]从出生那年就飘着\n"
		if lyric.Lyric != want {
			t.Errorf("expected %q, got %q", want, lyric.Lyric)
		}
	})
}
