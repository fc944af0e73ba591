// Kuwo Music [Provider] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/songbridge/internal/models"
)

const (
	KuwoID        = "kuwo"
	kuwoUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/134.0.0.0 Safari/537.36"
	kuwoCarSource = "kwplayercar_ar_6.0.0.9_B_jiakong_vh.apk"
	kuwoRIDPrefix = "MUSIC_"
)

// KuwoSong is a record from searchMusicBykeyWord.
type KuwoSong struct {
	MusicRID  string  `json:"MUSICRID"`
	SongName  string  `json:"SONGNAME"`
	Artist    string  `json:"ARTIST"`
	Album     string  `json:"ALBUM"`
	Duration  flexInt `json:"DURATION"` // seconds
	Pic       string  `json:"hts_MVPIC"`
	BitSwitch flexInt `json:"bitSwitch"` // 0 = no playable formats
}

var kuwoFormats = map[models.Quality]string{
	models.QualityStandard: "128kmp3",
	models.QualityHigher:   "320kmp3",
	models.QualityLossless: "2000kflac",
}

// KuwoProvider implements [Provider] for Kuwo.
type KuwoProvider struct {
	searchBase string
	mobiBase   string
	lyricBase  string
	http       *transport
}

// NewKuwoProvider creates a Kuwo adapter.
func NewKuwoProvider(opts Options) *KuwoProvider {
	k := &KuwoProvider{
		searchBase: "http://www.kuwo.cn",
		mobiBase:   "https://mobi.kuwo.cn",
		lyricBase:  "http://m.kuwo.cn",
		http:       newTransport(KuwoID, opts, map[string]string{"User-Agent": kuwoUserAgent}),
	}
	if opts.BaseURL != "" {
		k.searchBase, k.mobiBase, k.lyricBase = opts.BaseURL, opts.BaseURL, opts.BaseURL
	}
	return k
}

func (k *KuwoProvider) ID() string { return KuwoID }

// IsPlayable rejects records whose bitSwitch advertises no formats.
func (k *KuwoProvider) IsPlayable(raw json.RawMessage) bool {
	var song KuwoSong
	if len(raw) == 0 || json.Unmarshal(raw, &song) != nil {
		return true
	}
	return song.BitSwitch != 0
}

// Search calls GET /search/searchMusicBykeyWord.
func (k *KuwoProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	params := url.Values{}
	params.Set("vipver", "1")
	params.Set("client", "kt")
	params.Set("ft", "music")
	params.Set("cluster", "0")
	params.Set("strategy", "2012")
	params.Set("encoding", "utf8")
	params.Set("rformat", "json")
	params.Set("mobi", "1")
	params.Set("issubtitle", "1")
	params.Set("show_copyright_off", "1")
	params.Set("pn", "0")
	params.Set("rn", strconv.Itoa(limitOrDefault(limit)))
	params.Set("all", keyword)

	var resp struct {
		Total   flexInt           `json:"TOTAL"`
		AbsList []json.RawMessage `json:"abslist"`
	}
	if err := k.http.getJSON(ctx, "search", k.searchBase+"/search/searchMusicBykeyWord?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}

	result := &models.SearchResult{Tracks: make([]models.Track, 0, len(resp.AbsList)), Total: int(resp.Total)}
	for _, raw := range resp.AbsList {
		var song KuwoSong
		if err := json.Unmarshal(raw, &song); err != nil {
			return nil, k.http.parseError("search", err)
		}

		rid := strings.TrimPrefix(song.MusicRID, kuwoRIDPrefix)
		if rid == "" {
			continue
		}

		track := newTrack(k, rid, song.SongName, SplitArtists(song.Artist), song.Album, int64(song.Duration)*1000, raw)
		track.CoverRef = song.Pic
		track.LyricRef = rid
		result.Tracks = append(result.Tracks, track)
	}
	return result, nil
}

// ResolveURL calls GET /mobi.s with type=convert_url_with_sign.
func (k *KuwoProvider) ResolveURL(ctx context.Context, track models.Track, quality models.Quality) (*models.StreamResult, error) {
	if err := checkSource(k, "url", track); err != nil {
		return nil, err
	}

	br, ok := kuwoFormats[quality]
	if !ok {
		br = kuwoFormats[models.QualityStandard]
	}

	params := url.Values{}
	params.Set("f", "web")
	params.Set("source", kuwoCarSource)
	params.Set("from", "PC")
	params.Set("type", "convert_url_with_sign")
	params.Set("br", br)
	params.Set("rid", track.NativeID())

	var resp struct {
		Code int `json:"code"`
		Data struct {
			URL     string `json:"url"`
			Bitrate int    `json:"bitrate"`
			Format  string `json:"format"`
		} `json:"data"`
	}
	if err := k.http.getJSON(ctx, "url", k.mobiBase+"/mobi.s?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}
	if resp.Data.URL == "" {
		return nil, k.http.notPlayable("url", fmt.Sprintf("no url returned (code %d)", resp.Code))
	}

	return &models.StreamResult{URL: resp.Data.URL, Bitrate: resp.Data.Bitrate, ResolvedFrom: KuwoID, TrackID: track.ID}, nil
}

// GetLyric calls GET /newh5/singles/songinfoandlrc and renders the line list as LRC.
func (k *KuwoProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	if err := checkSource(k, "lyric", track); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("musicId", track.NativeID())
	params.Set("httpsStatus", "1")

	var resp struct {
		Status int `json:"status"`
		Data   struct {
			LrcList []struct {
				Time      string `json:"time"`
				LineLyric string `json:"lineLyric"`
			} `json:"lrclist"`
		} `json:"data"`
	}
	if err := k.http.getJSON(ctx, "lyric", k.lyricBase+"/newh5/singles/songinfoandlrc?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, line := range resp.Data.LrcList {
		secs, err := strconv.ParseFloat(line.Time, 64)
		if err != nil {
			continue
		}
		sb.WriteString(formatLRCTime(secs))
		sb.WriteString(line.LineLyric)
		sb.WriteByte('\n')
	}
	return &models.Lyric{Lyric: sb.String(), ResolvedFrom: KuwoID, TrackID: track.ID}, nil
}
