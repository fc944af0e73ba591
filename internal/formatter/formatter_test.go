package formatter

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/tasks"
	tu "github.com/desertthunder/songbridge/internal/testing"
)

func sampleResult() *tasks.BulkResolveResult {
	hello := tu.NewTrack("netease", "100", "Hello", []string{"Adele"}, 295000)
	yesterday := tu.NewTrack("netease", "101", "Yesterday", []string{"The Beatles", "Paul McCartney"}, 125000)
	gone := tu.NewTrack("kugou", "abc", "Gone", []string{"Nobody"}, 0)

	return &tasks.BulkResolveResult{
		Total:     3,
		Resolved:  2,
		Fallbacks: 1,
		Failed:    1,
		Elapsed:   1500 * time.Millisecond,
		Items: []tasks.BulkItem{
			{Track: hello, Stream: &models.StreamResult{URL: "http://a/1.mp3", Bitrate: 320, ResolvedFrom: "netease", TrackID: hello.ID}},
			{Track: yesterday, Stream: &models.StreamResult{URL: "http://b/2.mp3", Bitrate: 128, ResolvedFrom: "qq", TrackID: "qq:002", Fallback: true}},
			{Track: gone, Error: "no equivalent track on another provider"},
		},
	}
}

func TestExporters(t *testing.T) {
	result := sampleResult()

	t.Run("ManifestToCSV", func(t *testing.T) {
		data, err := ManifestToCSV(result)
		if err != nil {
			t.Fatalf("ManifestToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Track ID,Title,Artists,Outcome,Provider,Resolved ID,Bitrate,URL,Error") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "netease:100,Hello,Adele,ok,netease,netease:100,320,http://a/1.mp3,") {
			t.Errorf("CSV missing origin row, got: %s", output)
		}
		if !strings.Contains(output, "The Beatles; Paul McCartney,fallback,qq,qq:002") {
			t.Errorf("CSV missing fallback row, got: %s", output)
		}
		if !strings.Contains(output, "kugou:abc,Gone,Nobody,failed,,,,,no equivalent track on another provider") {
			t.Errorf("CSV missing failed row, got: %s", output)
		}
	})

	t.Run("ManifestToJSON", func(t *testing.T) {
		data, err := ManifestToJSON(result)
		if err != nil {
			t.Fatalf("ManifestToJSON failed: %v", err)
		}

		var decoded tasks.BulkResolveResult
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("manifest is not valid JSON: %v", err)
		}
		if decoded.Total != 3 || len(decoded.Items) != 3 {
			t.Errorf("unexpected manifest: %+v", decoded)
		}
		if decoded.Items[2].Error == "" {
			t.Error("expected the failure message to survive encoding")
		}
	})

	t.Run("ManifestToMarkdown", func(t *testing.T) {
		data, err := ManifestToMarkdown(result)
		if err != nil {
			t.Fatalf("ManifestToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"**Resolved**: 2 (1 via fallback)",
			"**Elapsed**: 1.5s",
			"1. Adele - Hello [ok] via netease",
			"2. The Beatles, Paul McCartney - Yesterday [fallback] via qq",
			"3. Nobody - Gone [failed]: no equivalent",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ManifestToText", func(t *testing.T) {
		data, err := ManifestToText(result)
		if err != nil {
			t.Fatalf("ManifestToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Resolved: 2, Fallbacks: 1, Failed: 1") {
			t.Errorf("Text missing summary, got: %s", output)
		}
		if !strings.Contains(output, "3. Nobody - Gone\t-") {
			t.Errorf("Text missing failed track, got: %s", output)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{".CSV", FormatCSV},
		{"markdown", FormatMarkdown},
		{"text", FormatText},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if err != nil {
				t.Fatalf("ParseFormat failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		if _, err := ParseFormat("xml"); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestWriteManifest(t *testing.T) {
	result := sampleResult()

	t.Run("infers format from extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out", "batch.csv")
		written, err := WriteManifest(result, path, "")
		if err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}

		tu.AssertDirExists(t, filepath.Dir(path))
		tu.AssertFileExists(t, written)
		if content := tu.MustReadFile(t, written); !strings.HasPrefix(content, "Track ID,") {
			t.Errorf("expected CSV content, got: %s", content)
		}
	})

	t.Run("defaults to JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "batch")
		if _, err := WriteManifest(result, path, ""); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "{") {
			t.Errorf("expected JSON content, got: %s", content)
		}
	})

	t.Run("explicit format wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "batch.json")
		if _, err := WriteManifest(result, path, FormatText); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.HasPrefix(content, "Tracks: 3") {
			t.Errorf("expected text content, got: %s", content)
		}
	})

	t.Run("requires a path", func(t *testing.T) {
		if _, err := WriteManifest(result, "", ""); err == nil {
			t.Error("expected error for empty path")
		}
	})
}

func TestReadTracks(t *testing.T) {
	hello := `{"id":"netease:100","title":"Hello","artists":["Adele"],"provider":"netease","playable":true}`
	bye := `{"id":"kugou:1","title":"Bye","artists":["X"],"provider":"kugou","playable":false}`

	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"array", "[" + hello + "," + bye + "]", 2},
		{"search result", `{"tracks":[` + hello + `],"total":1}`, 1},
		{"single object", hello, 1},
		{"ndjson", hello + "\n" + bye + "\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks, err := ReadTracks([]byte(tt.input))
			if err != nil {
				t.Fatalf("ReadTracks failed: %v", err)
			}
			if len(tracks) != tt.want {
				t.Fatalf("expected %d tracks, got %d", tt.want, len(tracks))
			}
			if tracks[0].ID != "netease:100" {
				t.Errorf("expected first track netease:100, got %s", tracks[0].ID)
			}
		})
	}

	t.Run("missing playable flag means playable", func(t *testing.T) {
		bare := `{"id":"p0:1","title":"Hello","artists":["Adele"],"provider":"p0"}`
		for _, input := range []string{"[" + bare + "," + bye + "]", `{"tracks":[` + bare + `,` + bye + `]}`, bare + "\n" + bye} {
			tracks, err := ReadTracks([]byte(input))
			if err != nil {
				t.Fatalf("ReadTracks failed: %v", err)
			}
			if !tracks[0].Playable {
				t.Errorf("expected track without playable field to be playable in %s", input)
			}
			if tracks[1].Playable {
				t.Errorf("expected explicit playable=false to be kept in %s", input)
			}
		}
	})

	for _, bad := range []string{"", "   ", "[]", "hello", "[{"} {
		t.Run("rejects "+strings.TrimSpace(bad), func(t *testing.T) {
			if _, err := ReadTracks([]byte(bad)); err == nil {
				t.Errorf("expected error for %q", bad)
			}
		})
	}
}

func TestTables(t *testing.T) {
	t.Run("TrackTable", func(t *testing.T) {
		unavailable := tu.NewTrack("qq", "9", "Locked", []string{"Someone"}, 0)
		unavailable.Playable = false

		out := TrackTable(Styles, []models.Track{
			tu.NewTrack("netease", "100", "Hello", []string{"Adele"}, 295000),
			unavailable,
		})
		for _, want := range []string{"Title", "Hello", "Adele", "4:55", "netease:100", "Locked (unavailable)", "--:--"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("ProviderTable", func(t *testing.T) {
		out := ProviderTable(Styles, []models.ProviderHealth{
			{ProviderID: "netease", Enabled: true, SuccessRate: 0.91, AvgLatency: 110 * time.Millisecond, Samples: 2},
			{ProviderID: "spotify", Enabled: false, SuccessRate: 1},
		})
		for _, want := range []string{"netease", "91%", "110ms", "spotify", "100%"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("HistoryTable", func(t *testing.T) {
		out := HistoryTable(Styles, []*models.Resolution{
			{Op: models.OpURL, Title: "Hello", Outcome: "fallback", ResolvedFrom: "qq", Attempts: 2, CreatedAt: time.Now()},
		})
		for _, want := range []string{"Hello", "fallback", "qq", "url"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("SourcesLine", func(t *testing.T) {
		out := SourcesLine(Styles, []models.SourceStatus{
			{Provider: "netease", Count: 10, Latency: 120},
			{Provider: "kugou", Error: "timeout"},
		})
		if !strings.Contains(out, "netease 10 (120ms)") || !strings.Contains(out, "kugou error: timeout") {
			t.Errorf("unexpected sources line: %s", out)
		}
	})
}
