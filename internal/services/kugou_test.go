package services

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

func TestKugouProvider(t *testing.T) {
	ctx := context.Background()

	search := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("keyword") != "晴天" {
			t.Errorf("unexpected keyword %s", r.URL.Query().Get("keyword"))
		}
		writeJSON(w, map[string]any{
			"status": 1,
			"data": map[string]any{
				"total": 3,
				"lists": []map[string]any{
					{
						"SongName": "<em>晴天</em>", "SingerName": "<em>周杰伦</em>", "AlbumName": "叶惠美", "Duration": 269,
						"FileHash": "STDHASH", "HQFileHash": "HQHASH", "SQFileHash": emptyHash,
						"Image": "http://img.kugou/{size}/a.jpg", "Privilege": 8,
					},
					{"SongName": "No Hash", "SingerName": "X", "FileHash": ""},
					{"SongName": "Paid", "SingerName": "Y", "FileHash": "PAIDHASH", "Privilege": 10},
				},
			},
		})
	}

	t.Run("Search", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{"/song_search_v2": search})
		res, err := NewKugouProvider(Options{BaseURL: server.URL}).Search(ctx, "晴天", 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(res.Tracks) != 2 {
			t.Fatalf("expected hashless record to be skipped, got %d tracks", len(res.Tracks))
		}

		got := res.Tracks[0]
		if got.ID != "kugou:STDHASH" || got.Title != "晴天" || got.DurationMs != 269000 {
			t.Errorf("unexpected track %+v", got)
		}
		if len(got.Artists) != 1 || got.Artists[0] != "周杰伦" {
			t.Errorf("expected highlighted singer cleaned to one artist, got %q", got.Artists)
		}
		if got.CoverRef != "http://img.kugou/240/a.jpg" {
			t.Errorf("expected sized cover, got %s", got.CoverRef)
		}
		if !got.Playable || res.Tracks[1].Playable {
			t.Error("expected privilege 10 to be unplayable")
		}
	})

	t.Run("ResolveURL falls back to the standard hash", func(t *testing.T) {
		var hashes []string
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/song_search_v2": search,
			"/app/i/getSongInfo.php": func(w http.ResponseWriter, r *http.Request) {
				hash := r.URL.Query().Get("hash")
				hashes = append(hashes, hash)
				if hash == "HQHASH" {
					writeJSON(w, map[string]any{"status": 1, "url": ""})
					return
				}
				writeJSON(w, map[string]any{"status": 1, "url": "http://fs.kugou/std.mp3", "bitRate": 128000})
			},
		})

		p := NewKugouProvider(Options{BaseURL: server.URL})
		res, err := p.Search(ctx, "晴天", 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}

		stream, err := p.ResolveURL(ctx, res.Tracks[0], models.QualityHigher)
		if err != nil {
			t.Fatalf("ResolveURL failed: %v", err)
		}
		if len(hashes) != 2 || hashes[0] != "HQHASH" || hashes[1] != "STDHASH" {
			t.Errorf("expected HQ then standard hash, got %v", hashes)
		}
		if stream.URL != "http://fs.kugou/std.mp3" || stream.Bitrate != 128 {
			t.Errorf("unexpected stream %+v", stream)
		}
	})

	t.Run("ResolveURL without url is not playable", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/app/i/getSongInfo.php": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"status": 0, "error": "需要付费"})
			},
		})
		track := models.Track{ID: "kugou:PAIDHASH", Provider: KugouID}
		_, err := NewKugouProvider(Options{BaseURL: server.URL}).ResolveURL(ctx, track, models.QualityStandard)
		if !errors.Is(err, shared.ErrNotPlayable) {
			t.Errorf("expected ErrNotPlayable, got %v", err)
		}
	})

	t.Run("GetLyric", func(t *testing.T) {
		lrc := "[00:01.00]故事的小黄花"
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/search": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("hash") != "STDHASH" {
					t.Errorf("unexpected hash %s", r.URL.Query().Get("hash"))
				}
				writeJSON(w, map[string]any{"status": 200, "candidates": []map[string]any{{"id": "9001", "accesskey": "KEY"}}})
			},
			"/download": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("id") != "9001" || r.URL.Query().Get("accesskey") != "KEY" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				writeJSON(w, map[string]any{"status": 200, "content": base64.StdEncoding.EncodeToString([]byte(lrc))})
			},
		})
		track := models.Track{ID: "kugou:STDHASH", Provider: KugouID, DurationMs: 269000}
		lyric, err := NewKugouProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if err != nil {
			t.Fatalf("GetLyric failed: %v", err)
		}
		if lyric.Lyric != lrc {
			t.Errorf("expected decoded lyric, got %q", lyric.Lyric)
		}
	})

	t.Run("GetLyric without candidates is empty", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/search": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"status": 200, "candidates": []any{}})
			},
		})
		track := models.Track{ID: "kugou:STDHASH", Provider: KugouID}
		lyric, err := NewKugouProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if err != nil || !lyric.Empty() {
			t.Errorf("expected empty lyric, got %+v (err %v)", lyric, err)
		}
	})
}
