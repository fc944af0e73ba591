// NetEase Cloud Music [Provider] implementation
//
// Uses the unencrypted web API endpoints; a logged-in cookie unlocks higher bitrates.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

const (
	NeteaseID          = "netease"
	defaultNeteaseBase = "https://music.163.com"
	neteaseReferer     = "https://music.163.com/"
)

type neteaseArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type neteaseAlbum struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	PicURL string `json:"picUrl"`
}

// NeteaseSong is a song record from the search endpoint.
type NeteaseSong struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Artists  []neteaseArtist `json:"artists"`
	Album    neteaseAlbum    `json:"album"`
	Duration int64           `json:"duration"` // ms
	Fee      int             `json:"fee"`      // 0 free, 1 VIP, 4 paid album, 8 free at low bitrate
	Status   int             `json:"status"`   // negative when delisted
}

// NeteaseProvider implements [Provider] for NetEase Cloud Music.
type NeteaseProvider struct {
	baseURL string
	http    *transport
}

// NewNeteaseProvider creates a NetEase adapter.
func NewNeteaseProvider(opts Options) *NeteaseProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultNeteaseBase
	}
	return &NeteaseProvider{
		baseURL: baseURL,
		http:    newTransport(NeteaseID, opts, map[string]string{"Referer": neteaseReferer}),
	}
}

func (n *NeteaseProvider) ID() string { return NeteaseID }

// IsPlayable rejects VIP-only, paid-album and delisted songs.
func (n *NeteaseProvider) IsPlayable(raw json.RawMessage) bool {
	var song struct {
		Fee    int `json:"fee"`
		Status int `json:"status"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &song) != nil {
		return true
	}
	return song.Fee != 1 && song.Fee != 4 && song.Status >= 0
}

// Search calls GET /api/search/get/web.
func (n *NeteaseProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	params := url.Values{}
	params.Set("s", keyword)
	params.Set("type", "1")
	params.Set("offset", "0")
	params.Set("limit", strconv.Itoa(limitOrDefault(limit)))

	var resp struct {
		Code   int `json:"code"`
		Result struct {
			Songs     []json.RawMessage `json:"songs"`
			SongCount int               `json:"songCount"`
		} `json:"result"`
	}
	if err := n.http.getJSON(ctx, "search", n.baseURL+"/api/search/get/web?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}
	if err := n.checkCode("search", resp.Code); err != nil {
		return nil, err
	}

	result := &models.SearchResult{Tracks: make([]models.Track, 0, len(resp.Result.Songs)), Total: resp.Result.SongCount}
	for _, raw := range resp.Result.Songs {
		var song NeteaseSong
		if err := json.Unmarshal(raw, &song); err != nil {
			return nil, n.http.parseError("search", err)
		}

		artists := make([]string, len(song.Artists))
		for i, a := range song.Artists {
			artists[i] = a.Name
		}

		track := newTrack(n, strconv.FormatInt(song.ID, 10), song.Name, artists, song.Album.Name, song.Duration, raw)
		track.CoverRef = song.Album.PicURL
		track.LyricRef = strconv.FormatInt(song.ID, 10)
		result.Tracks = append(result.Tracks, track)
	}
	return result, nil
}

// ResolveURL calls GET /api/song/enhance/player/url.
func (n *NeteaseProvider) ResolveURL(ctx context.Context, track models.Track, quality models.Quality) (*models.StreamResult, error) {
	if err := checkSource(n, "url", track); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ids", fmt.Sprintf("[%s]", track.NativeID()))
	params.Set("br", strconv.Itoa(quality.Bitrate()*1000))

	var resp struct {
		Code int `json:"code"`
		Data []struct {
			ID   int64  `json:"id"`
			URL  string `json:"url"`
			Br   int    `json:"br"`
			Code int    `json:"code"`
		} `json:"data"`
	}
	if err := n.http.getJSON(ctx, "url", n.baseURL+"/api/song/enhance/player/url?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}
	if err := n.checkCode("url", resp.Code); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, n.http.notPlayable("url", "no url returned (vip or copyright restricted)")
	}

	return &models.StreamResult{
		URL:          resp.Data[0].URL,
		Bitrate:      resp.Data[0].Br / 1000,
		ResolvedFrom: NeteaseID,
		TrackID:      track.ID,
	}, nil
}

// GetLyric calls GET /api/song/lyric.
func (n *NeteaseProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	if err := checkSource(n, "lyric", track); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("id", track.NativeID())
	params.Set("lv", "1")
	params.Set("tv", "-1")

	var resp struct {
		Code int `json:"code"`
		Lrc  struct {
			Lyric string `json:"lyric"`
		} `json:"lrc"`
		Tlyric struct {
			Lyric string `json:"lyric"`
		} `json:"tlyric"`
	}
	if err := n.http.getJSON(ctx, "lyric", n.baseURL+"/api/song/lyric?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}
	if err := n.checkCode("lyric", resp.Code); err != nil {
		return nil, err
	}

	return &models.Lyric{Lyric: resp.Lrc.Lyric, Translated: resp.Tlyric.Lyric, ResolvedFrom: NeteaseID, TrackID: track.ID}, nil
}

// checkCode maps the body-level status code. -460 and -462 are anti-abuse throttles.
func (n *NeteaseProvider) checkCode(op string, code int) error {
	switch code {
	case 0, 200:
		return nil
	case -460, -462:
		return shared.NewProviderError(NeteaseID, op, shared.KindRateLimited, fmt.Errorf("api code %d", code))
	default:
		return n.http.rejected(op, fmt.Errorf("api code %d", code))
	}
}
