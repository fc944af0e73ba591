// QQ Music [Provider] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand/v2"
	"net/url"
	"strconv"

	"github.com/desertthunder/songbridge/internal/models"
)

const (
	QQID            = "qq"
	qqSearchReferer = "http://m.y.qq.com"
	qqPlayerReferer = "https://y.qq.com/portal/player.html"
	qqStreamHost    = "http://ws.stream.qqmusic.qq.com/"
	qqNoLyric       = -1901
)

type qqSinger struct {
	Name string `json:"name"`
	Mid  string `json:"mid"`
}

// QQSong is a record from search_for_qq_cp.
type QQSong struct {
	SongID    int64      `json:"songid"`
	SongMID   string     `json:"songmid"`
	SongName  string     `json:"songname"`
	AlbumName string     `json:"albumname"`
	AlbumMID  string     `json:"albummid"`
	Interval  int64      `json:"interval"` // seconds
	Singer    []qqSinger `json:"singer"`
	Pay       struct {
		PayDown    int `json:"pay_down"`
		PayPlay    int `json:"pay_play"`
		PriceTrack int `json:"price_track"`
	} `json:"pay"`
}

type qqFile struct {
	prefix string
	ext    string
}

var qqFiles = map[models.Quality]qqFile{
	models.QualityStandard: {"M500", "mp3"},
	models.QualityHigher:   {"M800", "mp3"},
	models.QualityLossless: {"F000", "flac"},
}

// QQProvider implements [Provider] for QQ Music.
type QQProvider struct {
	searchBase string
	musicuBase string
	streamHost string
	http       *transport
}

// NewQQProvider creates a QQ Music adapter.
func NewQQProvider(opts Options) *QQProvider {
	q := &QQProvider{
		searchBase: "http://c.y.qq.com",
		musicuBase: "https://u.y.qq.com",
		streamHost: qqStreamHost,
		http:       newTransport(QQID, opts, map[string]string{"Referer": qqSearchReferer}),
	}
	if opts.BaseURL != "" {
		q.searchBase, q.musicuBase = opts.BaseURL, opts.BaseURL
		q.streamHost = opts.BaseURL + "/stream/"
	}
	return q
}

func (q *QQProvider) ID() string { return QQID }

// IsPlayable rejects songs that must be purchased.
func (q *QQProvider) IsPlayable(raw json.RawMessage) bool {
	var song QQSong
	if len(raw) == 0 || json.Unmarshal(raw, &song) != nil {
		return true
	}
	return song.Pay.PayDown != 1 && song.Pay.PriceTrack == 0
}

// Search calls GET /soso/fcgi-bin/search_for_qq_cp.
func (q *QQProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	params := url.Values{}
	params.Set("w", keyword)
	params.Set("format", "json")
	params.Set("p", "1")
	params.Set("n", strconv.Itoa(limitOrDefault(limit)))

	var resp struct {
		Code int `json:"code"`
		Data struct {
			Song struct {
				List     []json.RawMessage `json:"list"`
				TotalNum int               `json:"totalnum"`
			} `json:"song"`
		} `json:"data"`
	}
	if err := q.http.getJSON(ctx, "search", q.searchBase+"/soso/fcgi-bin/search_for_qq_cp?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, q.http.rejected("search", fmt.Errorf("api code %d", resp.Code))
	}

	result := &models.SearchResult{Tracks: make([]models.Track, 0, len(resp.Data.Song.List)), Total: resp.Data.Song.TotalNum}
	for _, raw := range resp.Data.Song.List {
		var song QQSong
		if err := json.Unmarshal(raw, &song); err != nil {
			return nil, q.http.parseError("search", err)
		}
		if song.SongMID == "" {
			continue
		}

		artists := make([]string, len(song.Singer))
		for i, s := range song.Singer {
			artists[i] = s.Name
		}

		track := newTrack(q, song.SongMID, song.SongName, artists, song.AlbumName, song.Interval*1000, raw)
		if song.AlbumMID != "" {
			track.CoverRef = fmt.Sprintf("https://y.gtimg.cn/music/photo_new/T002R300x300M000%s.jpg", song.AlbumMID)
		}
		track.LyricRef = song.SongMID
		result.Tracks = append(result.Tracks, track)
	}
	return result, nil
}

// ResolveURL requests a vkey through POST /cgi-bin/musicu.fcg.
func (q *QQProvider) ResolveURL(ctx context.Context, track models.Track, quality models.Quality) (*models.StreamResult, error) {
	if err := checkSource(q, "url", track); err != nil {
		return nil, err
	}

	file, ok := qqFiles[quality]
	if !ok {
		file = qqFiles[models.QualityStandard]
	}
	mid := track.NativeID()
	guid := strconv.FormatInt(rand.Int64N(9_000_000_000)+1_000_000_000, 10)

	body := map[string]any{
		"comm": map[string]any{"ct": 24, "cv": 0, "format": "json", "uin": 0},
		"req_1": map[string]any{
			"module": "vkey.GetVkeyServer",
			"method": "CgiGetVkey",
			"param": map[string]any{
				"guid":      guid,
				"songmid":   []string{mid},
				"songtype":  []int{0},
				"uin":       "0",
				"loginflag": 1,
				"platform":  "20",
				"filename":  []string{fmt.Sprintf("%s%s%s.%s", file.prefix, mid, mid, file.ext)},
			},
		},
	}

	var resp struct {
		Code int `json:"code"`
		Req1 struct {
			Code int `json:"code"`
			Data struct {
				Sip        []string `json:"sip"`
				MidURLInfo []struct {
					Purl    string `json:"purl"`
					WifiURL string `json:"wifiurl"`
				} `json:"midurlinfo"`
			} `json:"data"`
		} `json:"req_1"`
	}
	headers := map[string]string{"Referer": qqPlayerReferer}
	if err := q.http.postJSON(ctx, "url", q.musicuBase+"/cgi-bin/musicu.fcg", body, &resp, headers); err != nil {
		return nil, err
	}
	if resp.Code != 0 || resp.Req1.Code != 0 {
		return nil, q.http.rejected("url", fmt.Errorf("api code %d/%d", resp.Code, resp.Req1.Code))
	}
	if len(resp.Req1.Data.MidURLInfo) == 0 {
		return nil, q.http.notPlayable("url", "no vkey issued")
	}

	info := resp.Req1.Data.MidURLInfo[0]
	purl := info.Purl
	if purl == "" {
		purl = info.WifiURL
	}
	if purl == "" {
		return nil, q.http.notPlayable("url", "empty purl (copyright restricted or vip required)")
	}

	host := q.streamHost
	if len(resp.Req1.Data.Sip) > 0 && resp.Req1.Data.Sip[0] != "" {
		host = resp.Req1.Data.Sip[0]
	}
	return &models.StreamResult{URL: host + purl, Bitrate: quality.Bitrate(), ResolvedFrom: QQID, TrackID: track.ID}, nil
}

// GetLyric calls GET /lyric/fcgi-bin/fcg_query_lyric_new.fcg with nobase64=1.
func (q *QQProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	if err := checkSource(q, "lyric", track); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("songmid", track.NativeID())
	params.Set("format", "json")
	params.Set("nobase64", "1")
	params.Set("g_tk", "5381")

	var resp struct {
		RetCode int    `json:"retcode"`
		Code    int    `json:"code"`
		Lyric   string `json:"lyric"`
		Trans   string `json:"trans"`
	}
	headers := map[string]string{"Referer": qqPlayerReferer}
	if err := q.http.getJSON(ctx, "lyric", q.searchBase+"/lyric/fcgi-bin/fcg_query_lyric_new.fcg?"+params.Encode(), &resp, headers); err != nil {
		return nil, err
	}

	switch {
	case resp.RetCode == qqNoLyric || resp.Code == qqNoLyric:
		return &models.Lyric{ResolvedFrom: QQID, TrackID: track.ID}, nil
	case resp.RetCode != 0:
		return nil, q.http.rejected("lyric", fmt.Errorf("retcode %d", resp.RetCode))
	}

	return &models.Lyric{
		Lyric:        html.UnescapeString(resp.Lyric),
		Translated:   html.UnescapeString(resp.Trans),
		ResolvedFrom: QQID,
		TrackID:      track.ID,
	}, nil
}
