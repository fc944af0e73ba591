package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

func TestQQProvider(t *testing.T) {
	ctx := context.Background()
	track := models.Track{ID: "qq:003OUlho2HcRHC", Provider: QQID}

	t.Run("Search", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/soso/fcgi-bin/search_for_qq_cp": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("w") != "晴天" || r.URL.Query().Get("n") != "3" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				writeJSON(w, map[string]any{
					"code": 0,
					"data": map[string]any{"song": map[string]any{
						"totalnum": 2,
						"list": []map[string]any{
							{
								"songmid": "003OUlho2HcRHC", "songname": "晴天", "albumname": "叶惠美",
								"albummid": "000MkMni19ClKG", "interval": 269,
								"singer": []map[string]any{{"name": "周杰伦"}},
								"pay":    map[string]any{"pay_down": 0, "pay_play": 0, "price_track": 0},
							},
							{
								"songmid": "PAID", "songname": "Paid", "interval": 100,
								"singer": []map[string]any{{"name": "Y"}},
								"pay":    map[string]any{"pay_down": 1, "price_track": 200},
							},
						},
					}},
				})
			},
		})
		res, err := NewQQProvider(Options{BaseURL: server.URL}).Search(ctx, "晴天", 3)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(res.Tracks) != 2 || res.Total != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(res.Tracks))
		}
		got := res.Tracks[0]
		if got.ID != "qq:003OUlho2HcRHC" || got.DurationMs != 269000 || got.LyricRef != "003OUlho2HcRHC" {
			t.Errorf("unexpected track %+v", got)
		}
		if got.CoverRef == "" {
			t.Error("expected cover derived from album mid")
		}
		if !got.Playable || res.Tracks[1].Playable {
			t.Error("expected paid track to be unplayable")
		}
	})

	t.Run("ResolveURL", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/cgi-bin/musicu.fcg": func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				var body struct {
					Req1 struct {
						Module string `json:"module"`
						Param  struct {
							Filename []string `json:"filename"`
						} `json:"param"`
					} `json:"req_1"`
				}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Fatalf("bad request body: %v", err)
				}
				if body.Req1.Module != "vkey.GetVkeyServer" {
					t.Errorf("unexpected module %s", body.Req1.Module)
				}
				if len(body.Req1.Param.Filename) != 1 || body.Req1.Param.Filename[0] != "M800003OUlho2HcRHC003OUlho2HcRHC.mp3" {
					t.Errorf("unexpected filename %v", body.Req1.Param.Filename)
				}
				writeJSON(w, map[string]any{
					"code": 0,
					"req_1": map[string]any{"code": 0, "data": map[string]any{
						"sip":        []string{},
						"midurlinfo": []map[string]any{{"purl": "M800x.mp3?vkey=abc"}},
					}},
				})
			},
		})
		res, err := NewQQProvider(Options{BaseURL: server.URL}).ResolveURL(ctx, track, models.QualityHigher)
		if err != nil {
			t.Fatalf("ResolveURL failed: %v", err)
		}
		if res.URL != server.URL+"/stream/M800x.mp3?vkey=abc" || res.Bitrate != 320 {
			t.Errorf("unexpected stream %+v", res)
		}
	})

	t.Run("ResolveURL with empty purl is not playable", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/cgi-bin/musicu.fcg": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{
					"code":  0,
					"req_1": map[string]any{"code": 0, "data": map[string]any{"midurlinfo": []map[string]any{{"purl": ""}}}},
				})
			},
		})
		_, err := NewQQProvider(Options{BaseURL: server.URL}).ResolveURL(ctx, track, models.QualityStandard)
		if !errors.Is(err, shared.ErrNotPlayable) {
			t.Errorf("expected ErrNotPlayable, got %v", err)
		}
	})

	t.Run("GetLyric", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/lyric/fcgi-bin/fcg_query_lyric_new.fcg": func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("nobase64") != "1" {
					t.Error("expected nobase64=1")
				}
				writeJSON(w, map[string]any{"retcode": 0, "code": 0, "lyric": "[00&#58;01.00]晴天", "trans": ""})
			},
		})
		lyric, err := NewQQProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if err != nil {
			t.Fatalf("GetLyric failed: %v", err)
		}
		if lyric.Lyric != "[00:01.00]晴天" {
			t.Errorf("expected unescaped lyric, got %q", lyric.Lyric)
		}
	})

	t.Run("GetLyric without lyric is empty", func(t *testing.T) {
		server := newUpstream(t, map[string]http.HandlerFunc{
			"/lyric/fcgi-bin/fcg_query_lyric_new.fcg": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, map[string]any{"retcode": -1901, "code": -1901})
			},
		})
		lyric, err := NewQQProvider(Options{BaseURL: server.URL}).GetLyric(ctx, track)
		if err != nil || !lyric.Empty() {
			t.Errorf("expected empty lyric, got %+v (err %v)", lyric, err)
		}
	})
}
