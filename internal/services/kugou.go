// Kugou Music [Provider] implementation
package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/songbridge/internal/models"
)

const (
	KugouID      = "kugou"
	kugouReferer = "http://m.kugou.com"
	emptyHash    = "00000000000000000000000000000000"
)

// KugouSong is a record from song_search_v2.
type KugouSong struct {
	SongName   string `json:"SongName"`
	SingerName string `json:"SingerName"`
	AlbumName  string `json:"AlbumName"`
	Duration   int64  `json:"Duration"` // seconds
	FileHash   string `json:"FileHash"`
	HQFileHash string `json:"HQFileHash"`
	SQFileHash string `json:"SQFileHash"`
	Image      string `json:"Image"`
	PayType    int    `json:"PayType"`
	Privilege  int    `json:"Privilege"` // 10 = purchase required
}

func (s KugouSong) hashFor(q models.Quality) string {
	switch {
	case q == models.QualityLossless && validHash(s.SQFileHash):
		return s.SQFileHash
	case q != models.QualityStandard && validHash(s.HQFileHash):
		return s.HQFileHash
	default:
		return s.FileHash
	}
}

func validHash(h string) bool {
	return h != "" && h != emptyHash
}

// KugouProvider implements [Provider] for Kugou.
type KugouProvider struct {
	searchBase      string
	playBase        string
	lyricSearchBase string
	lyricBase       string
	http            *transport
}

// NewKugouProvider creates a Kugou adapter.
func NewKugouProvider(opts Options) *KugouProvider {
	k := &KugouProvider{
		searchBase:      "http://songsearch.kugou.com",
		playBase:        "http://m.kugou.com",
		lyricSearchBase: "http://krcs.kugou.com",
		lyricBase:       "http://lyrics.kugou.com",
		http:            newTransport(KugouID, opts, map[string]string{"Referer": kugouReferer}),
	}
	if opts.BaseURL != "" {
		k.searchBase, k.playBase, k.lyricSearchBase, k.lyricBase = opts.BaseURL, opts.BaseURL, opts.BaseURL, opts.BaseURL
	}
	return k
}

func (k *KugouProvider) ID() string { return KugouID }

// IsPlayable rejects purchase-only songs and records without any audio hash.
func (k *KugouProvider) IsPlayable(raw json.RawMessage) bool {
	var song KugouSong
	if len(raw) == 0 || json.Unmarshal(raw, &song) != nil {
		return true
	}
	if song.Privilege == 10 {
		return false
	}
	return validHash(song.FileHash) || validHash(song.HQFileHash) || validHash(song.SQFileHash)
}

// Search calls GET /song_search_v2.
func (k *KugouProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	params := url.Values{}
	params.Set("keyword", keyword)
	params.Set("platform", "WebFilter")
	params.Set("format", "json")
	params.Set("page", "1")
	params.Set("pagesize", strconv.Itoa(limitOrDefault(limit)))

	var resp struct {
		Status int `json:"status"`
		Data   struct {
			Lists []json.RawMessage `json:"lists"`
			Total int               `json:"total"`
		} `json:"data"`
	}
	if err := k.http.getJSON(ctx, "search", k.searchBase+"/song_search_v2?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}

	result := &models.SearchResult{Tracks: make([]models.Track, 0, len(resp.Data.Lists)), Total: resp.Data.Total}
	for _, raw := range resp.Data.Lists {
		var song KugouSong
		if err := json.Unmarshal(raw, &song); err != nil {
			return nil, k.http.parseError("search", err)
		}
		if !validHash(song.FileHash) {
			continue
		}

		track := newTrack(k, song.FileHash, song.SongName, SplitArtists(song.SingerName), song.AlbumName, song.Duration*1000, raw)
		track.CoverRef = strings.Replace(song.Image, "{size}", "240", 1)
		track.LyricRef = song.FileHash
		result.Tracks = append(result.Tracks, track)
	}
	return result, nil
}

// ResolveURL calls GET /app/i/getSongInfo.php with the hash matching the requested quality,
// falling back to the standard hash when the higher tier has no url.
func (k *KugouProvider) ResolveURL(ctx context.Context, track models.Track, quality models.Quality) (*models.StreamResult, error) {
	if err := checkSource(k, "url", track); err != nil {
		return nil, err
	}

	hashes := []string{track.NativeID()}
	var song KugouSong
	if len(track.Raw) > 0 && json.Unmarshal(track.Raw, &song) == nil {
		if h := song.hashFor(quality); validHash(h) && h != track.NativeID() {
			hashes = []string{h, track.NativeID()}
		}
	}

	for _, hash := range hashes {
		params := url.Values{}
		params.Set("cmd", "playInfo")
		params.Set("hash", hash)

		var resp struct {
			Status  int    `json:"status"`
			URL     string `json:"url"`
			BitRate int    `json:"bitRate"`
			Error   string `json:"error"`
		}
		if err := k.http.getJSON(ctx, "url", k.playBase+"/app/i/getSongInfo.php?"+params.Encode(), &resp, nil); err != nil {
			return nil, err
		}
		if resp.URL != "" {
			return &models.StreamResult{URL: resp.URL, Bitrate: resp.BitRate / 1000, ResolvedFrom: KugouID, TrackID: track.ID}, nil
		}
	}
	return nil, k.http.notPlayable("url", "no url returned (paid song)")
}

// GetLyric searches krcs for a lyric candidate by hash and downloads it as base64 LRC.
func (k *KugouProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	if err := checkSource(k, "lyric", track); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ver", "1")
	params.Set("client", "mobi")
	params.Set("man", "yes")
	params.Set("hash", track.NativeID())
	if track.DurationMs > 0 {
		params.Set("duration", strconv.FormatInt(track.DurationMs, 10))
	}

	var search struct {
		Status     int `json:"status"`
		Candidates []struct {
			ID        flexInt `json:"id"`
			AccessKey string  `json:"accesskey"`
		} `json:"candidates"`
	}
	if err := k.http.getJSON(ctx, "lyric", k.lyricSearchBase+"/search?"+params.Encode(), &search, nil); err != nil {
		return nil, err
	}
	if len(search.Candidates) == 0 {
		return &models.Lyric{ResolvedFrom: KugouID, TrackID: track.ID}, nil
	}

	candidate := search.Candidates[0]
	dl := url.Values{}
	dl.Set("ver", "1")
	dl.Set("client", "pc")
	dl.Set("id", strconv.FormatInt(int64(candidate.ID), 10))
	dl.Set("accesskey", candidate.AccessKey)
	dl.Set("fmt", "lrc")
	dl.Set("charset", "utf8")

	var download struct {
		Status  int    `json:"status"`
		Content string `json:"content"`
	}
	if err := k.http.getJSON(ctx, "lyric", k.lyricBase+"/download?"+dl.Encode(), &download, nil); err != nil {
		return nil, err
	}
	if download.Content == "" {
		return &models.Lyric{ResolvedFrom: KugouID, TrackID: track.ID}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(download.Content)
	if err != nil {
		return nil, k.http.parseError("lyric", fmt.Errorf("base64 decode: %w", err))
	}
	return &models.Lyric{Lyric: string(decoded), ResolvedFrom: KugouID, TrackID: track.ID}, nil
}
