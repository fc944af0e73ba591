// package formatter renders tracks, provider health and batch manifests for the terminal and for files (CSV, JSON, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
	"github.com/desertthunder/songbridge/internal/tasks"
)

// Format selects a manifest encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat maps a flag value or file extension onto a [Format].
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// ManifestToCSV converts a batch result to CSV with columns: Track ID, Title, Artists, Outcome, Provider, Resolved ID, Bitrate, URL, Error
func ManifestToCSV(result *tasks.BulkResolveResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Track ID", "Title", "Artists", "Outcome", "Provider", "Resolved ID", "Bitrate", "URL", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range result.Items {
		record := []string{
			item.Track.ID,
			item.Track.Title,
			strings.Join(item.Track.Artists, "; "),
			outcome(item),
			"", "", "", "",
			item.Error,
		}
		if s := item.Stream; s != nil {
			record[4] = s.ResolvedFrom
			record[5] = s.TrackID
			record[6] = strconv.Itoa(s.Bitrate)
			record[7] = s.URL
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ManifestToJSON renders the batch result as indented JSON.
func ManifestToJSON(result *tasks.BulkResolveResult) ([]byte, error) {
	return shared.MarshalJSON(result, true)
}

// ManifestToMarkdown renders a summary and one line per track.
func ManifestToMarkdown(result *tasks.BulkResolveResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Batch resolution\n\n")
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n", result.Total))
	buf.WriteString(fmt.Sprintf("**Resolved**: %d (%d via fallback)\n", result.Resolved, result.Fallbacks))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n", result.Failed))
	buf.WriteString(fmt.Sprintf("**Elapsed**: %s\n\n", result.Elapsed.Round(time.Millisecond)))

	buf.WriteString("## Tracks\n\n")
	for i, item := range result.Items {
		line := fmt.Sprintf("%d. %s - %s [%s]", i+1, item.Track.ArtistLine(), item.Track.Title, outcome(item))
		switch {
		case item.Stream != nil:
			line += fmt.Sprintf(" via %s", item.Stream.ResolvedFrom)
		case item.Error != "":
			line += fmt.Sprintf(": %s", item.Error)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ManifestToText renders the batch result as plain text.
func ManifestToText(result *tasks.BulkResolveResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n", result.Total))
	buf.WriteString(fmt.Sprintf("Resolved: %d, Fallbacks: %d, Failed: %d\n\n", result.Resolved, result.Fallbacks, result.Failed))

	for i, item := range result.Items {
		url := "-"
		if item.Stream != nil {
			url = item.Stream.URL
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s\t%s\n", i+1, item.Track.ArtistLine(), item.Track.Title, url))
	}

	return buf.Bytes(), nil
}

// EncodeManifest renders result in format.
func EncodeManifest(result *tasks.BulkResolveResult, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ManifestToJSON(result)
	case FormatCSV:
		return ManifestToCSV(result)
	case FormatMarkdown:
		return ManifestToMarkdown(result)
	case FormatText:
		return ManifestToText(result)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteManifest writes the batch result to path.
//
// When format is empty it is inferred from the file extension, defaulting to JSON. Parent directories are created.
func WriteManifest(result *tasks.BulkResolveResult, path string, format Format) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: manifest path is required", shared.ErrMissingArgument)
	}
	if format == "" {
		format = FormatJSON
		if ext := filepath.Ext(path); ext != "" {
			if f, err := ParseFormat(ext); err == nil {
				format = f
			}
		}
	}

	data, err := EncodeManifest(result, format)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}

	return path, nil
}

// ReadTracks parses batch input: a JSON array of tracks, a search result object, or newline-delimited JSON tracks.
//
// Tracks are decoded with [models.DecodeTrack], so a missing "playable" field means playable.
func ReadTracks(data []byte) ([]models.Track, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no tracks in input", shared.ErrInvalidInput)
	}

	var raws []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	case '{':
		var sr struct {
			Tracks []json.RawMessage `json:"tracks"`
		}
		if err := json.Unmarshal(data, &sr); err == nil && sr.Tracks != nil {
			raws = sr.Tracks
			break
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
			}
			raws = append(raws, raw)
		}
	default:
		return nil, fmt.Errorf("%w: expected JSON tracks", shared.ErrInvalidInput)
	}

	tracks := make([]models.Track, 0, len(raws))
	for i, raw := range raws {
		t, err := models.DecodeTrack(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: track %d: %v", shared.ErrInvalidInput, i+1, err)
		}
		tracks = append(tracks, t)
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks in input", shared.ErrInvalidInput)
	}
	return tracks, nil
}

func outcome(item tasks.BulkItem) string {
	switch {
	case item.Stream == nil:
		return "failed"
	case item.Stream.Fallback:
		return "fallback"
	default:
		return "ok"
	}
}
