// Migu Music [Provider] implementation
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/songbridge/internal/models"
)

const (
	MiguID           = "migu"
	miguReferer      = "http://music.migu.cn/"
	miguMagicUserID  = "15548614588710179085069"
	miguOK           = "000000"
	miguHiddenPaid   = 200
	miguDefaultToner = "PQ"
)

var miguToneFlags = map[models.Quality]string{
	models.QualityStandard: "PQ",
	models.QualityHigher:   "HQ",
	models.QualityLossless: "SQ",
}

var miguFormatKbps = map[string]int64{"LQ": 64, "PQ": 128, "HQ": 320}

type miguRateFormat struct {
	FormatType   string   `json:"formatType"`
	ResourceType string   `json:"resourceType"`
	Size         flexInt  `json:"size"`
	AndroidSize  flexInt  `json:"androidSize"`
	Price        flexInt  `json:"price"`
	ShowTag      []string `json:"showTag"`
}

// MiguSong is a record from search_all.do.
type MiguSong struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ContentID       string `json:"contentId"`
	CopyrightID     string `json:"copyrightId"`
	ChargeAuditions string `json:"chargeAuditions"` // "1" = paid preview
	Singers         []struct {
		Name string `json:"name"`
	} `json:"singers"`
	Albums []struct {
		Name string `json:"name"`
	} `json:"albums"`
	ImgItems []struct {
		Img string `json:"img"`
	} `json:"imgItems"`
	RateFormats []miguRateFormat `json:"rateFormats"`
}

// playable returns the formats a free user can stream.
func (s MiguSong) playable() []miguRateFormat {
	var out []miguRateFormat
	for _, f := range s.RateFormats {
		vip := false
		for _, tag := range f.ShowTag {
			if tag == "vip" {
				vip = true
				break
			}
		}
		hiddenPaid := s.ChargeAuditions == "1" && f.Price >= miguHiddenPaid
		if !vip && !hiddenPaid {
			out = append(out, f)
		}
	}
	return out
}

// durationMs estimates length from the first sized format, since search results carry no duration.
func (s MiguSong) durationMs() int64 {
	for _, f := range s.RateFormats {
		size := int64(f.AndroidSize)
		if size == 0 {
			size = int64(f.Size)
		}
		if kbps, ok := miguFormatKbps[f.FormatType]; ok && size > 0 {
			return size * 8 / kbps
		}
	}
	return 0
}

// MiguProvider implements [Provider] for Migu.
type MiguProvider struct {
	searchBase string
	listenBase string
	webBase    string
	http       *transport
}

// NewMiguProvider creates a Migu adapter.
func NewMiguProvider(opts Options) *MiguProvider {
	m := &MiguProvider{
		searchBase: "http://pd.musicapp.migu.cn",
		listenBase: "http://app.pd.nf.migu.cn",
		webBase:    "http://music.migu.cn",
		http:       newTransport(MiguID, opts, map[string]string{"Referer": miguReferer}),
	}
	if opts.BaseURL != "" {
		m.searchBase, m.listenBase, m.webBase = opts.BaseURL, opts.BaseURL, opts.BaseURL
	}
	return m
}

func (m *MiguProvider) ID() string { return MiguID }

// IsPlayable requires at least one format that is neither VIP-tagged nor a paid preview.
func (m *MiguProvider) IsPlayable(raw json.RawMessage) bool {
	var song MiguSong
	if len(raw) == 0 || json.Unmarshal(raw, &song) != nil {
		return true
	}
	return len(song.playable()) > 0
}

// Search calls GET /MIGUM2.0/v1.0/content/search_all.do.
func (m *MiguProvider) Search(ctx context.Context, keyword string, limit int) (*models.SearchResult, error) {
	params := url.Values{}
	params.Set("ua", "Android_migu")
	params.Set("version", "5.0.1")
	params.Set("text", keyword)
	params.Set("pageNo", "1")
	params.Set("pageSize", strconv.Itoa(limitOrDefault(limit)))
	params.Set("searchSwitch", `{"song":1,"album":0,"singer":0,"tagSong":0,"mvSong":0,"songlist":0,"bestShow":1}`)

	var resp struct {
		Code           string `json:"code"`
		SongResultData struct {
			TotalCount flexInt           `json:"totalCount"`
			Result     []json.RawMessage `json:"result"`
		} `json:"songResultData"`
	}
	if err := m.http.getJSON(ctx, "search", m.searchBase+"/MIGUM2.0/v1.0/content/search_all.do?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}
	if resp.Code != "" && resp.Code != miguOK {
		return nil, m.http.rejected("search", fmt.Errorf("api code %s", resp.Code))
	}

	result := &models.SearchResult{
		Tracks: make([]models.Track, 0, len(resp.SongResultData.Result)),
		Total:  int(resp.SongResultData.TotalCount),
	}
	for _, raw := range resp.SongResultData.Result {
		var song MiguSong
		if err := json.Unmarshal(raw, &song); err != nil {
			return nil, m.http.parseError("search", err)
		}
		if song.ContentID == "" {
			continue
		}

		artists := make([]string, len(song.Singers))
		for i, s := range song.Singers {
			artists[i] = s.Name
		}
		album := ""
		if len(song.Albums) > 0 {
			album = song.Albums[0].Name
		}

		track := newTrack(m, song.ContentID, song.Name, artists, album, song.durationMs(), raw)
		if len(song.ImgItems) > 0 {
			track.CoverRef = song.ImgItems[0].Img
		}
		track.LyricRef = song.CopyrightID
		result.Tracks = append(result.Tracks, track)
	}
	return result, nil
}

// ResolveURL calls listenSong.do and returns the redirect target.
func (m *MiguProvider) ResolveURL(ctx context.Context, track models.Track, quality models.Quality) (*models.StreamResult, error) {
	if err := checkSource(m, "url", track); err != nil {
		return nil, err
	}

	toneFlag, ok := miguToneFlags[quality]
	if !ok {
		toneFlag = miguDefaultToner
	}
	resourceType := "2"

	var song MiguSong
	if len(track.Raw) > 0 && json.Unmarshal(track.Raw, &song) == nil {
		formats := song.playable()
		if len(formats) == 0 && len(song.RateFormats) > 0 {
			return nil, m.http.notPlayable("url", "every format requires vip")
		}
		chosen := false
		for _, f := range formats {
			if f.FormatType == toneFlag {
				resourceType, chosen = f.ResourceType, true
				break
			}
		}
		if !chosen && len(formats) > 0 {
			toneFlag, resourceType = formats[0].FormatType, formats[0].ResourceType
		}
	}

	params := url.Values{}
	params.Set("toneFlag", toneFlag)
	params.Set("netType", "00")
	params.Set("userId", miguMagicUserID)
	params.Set("ua", "Android_migu")
	params.Set("version", "5.1")
	params.Set("copyrightId", "0")
	params.Set("contentId", track.NativeID())
	params.Set("resourceType", resourceType)
	params.Set("channel", "0")

	location, status, err := m.http.location(ctx, "url", m.listenBase+"/MIGUM2.0/v1.0/content/sub/listenSong.do?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if status < http.StatusMultipleChoices || location == "" {
		return nil, m.http.notPlayable("url", fmt.Sprintf("no redirect issued (status %d)", status))
	}

	return &models.StreamResult{
		URL:          location,
		Bitrate:      int(miguFormatKbps[toneFlag]),
		ResolvedFrom: MiguID,
		TrackID:      track.ID,
	}, nil
}

// GetLyric calls GET /v3/api/music/audioPlayer/getLyric by copyright ID.
func (m *MiguProvider) GetLyric(ctx context.Context, track models.Track) (*models.Lyric, error) {
	if err := checkSource(m, "lyric", track); err != nil {
		return nil, err
	}
	if track.LyricRef == "" {
		return &models.Lyric{ResolvedFrom: MiguID, TrackID: track.ID}, nil
	}

	params := url.Values{}
	params.Set("copyrightId", track.LyricRef)

	var resp struct {
		ReturnCode string `json:"returnCode"`
		Msg        string `json:"msg"`
		Lyric      string `json:"lyric"`
		TransLyric string `json:"translatedLyric"`
	}
	if err := m.http.getJSON(ctx, "lyric", m.webBase+"/v3/api/music/audioPlayer/getLyric?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}
	if resp.ReturnCode != miguOK {
		return &models.Lyric{ResolvedFrom: MiguID, TrackID: track.ID}, nil
	}

	return &models.Lyric{Lyric: resp.Lyric, Translated: resp.TransLyric, ResolvedFrom: MiguID, TrackID: track.ID}, nil
}
