package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/songbridge/internal/models"
	"github.com/desertthunder/songbridge/internal/shared"
)

var cell = lipgloss.NewStyle().Padding(0, 1)

func newTable(p *Palette, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.Header
			}
			return cell
		}).
		Headers(headers...)
}

// TrackTable renders search results, one row per track.
func TrackTable(p *Palette, tracks []models.Track) string {
	t := newTable(p, "#", "Title", "Artists", "Album", "Duration", "ID")
	for i, tr := range tracks {
		title := tr.Title
		if !tr.Playable {
			title = p.Muted.Render(title + " (unavailable)")
		}
		t.Row(strconv.Itoa(i+1), title, tr.ArtistLine(), tr.Album, shared.FormatDuration(tr.DurationMs), tr.ID)
	}
	return t.String()
}

// SourcesLine summarizes per-provider search outcomes, e.g. "netease 10 (120ms) · kugou error: timeout".
func SourcesLine(p *Palette, sources []models.SourceStatus) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		if s.Error != "" {
			parts[i] = p.Err.Render(fmt.Sprintf("%s error: %s", s.Provider, s.Error))
			continue
		}
		parts[i] = fmt.Sprintf("%s %d (%dms)", s.Provider, s.Count, s.Latency)
	}
	return strings.Join(parts, " · ")
}

// ProviderTable renders provider health in ranking-input order.
func ProviderTable(p *Palette, health []models.ProviderHealth) string {
	t := newTable(p, "Provider", "Enabled", "Success", "Avg latency", "Samples")
	for _, h := range health {
		enabled := p.OK.Render("yes")
		if !h.Enabled {
			enabled = p.Muted.Render("no")
		}
		t.Row(h.ProviderID, enabled, fmt.Sprintf("%.0f%%", h.SuccessRate*100), shared.FormatLatency(h.AvgLatency), strconv.FormatInt(h.Samples, 10))
	}
	return t.String()
}

// HistoryTable renders recorded resolutions, newest first.
func HistoryTable(p *Palette, history []*models.Resolution) string {
	t := newTable(p, "When", "Op", "Track", "Outcome", "From", "Attempts")
	for _, r := range history {
		o := r.Outcome
		switch o {
		case "ok":
			o = p.OK.Render(o)
		case "fallback":
			o = p.Warn.Render(o)
		default:
			o = p.Err.Render(o)
		}
		t.Row(r.CreatedAt.Local().Format("2006-01-02 15:04:05"), string(r.Op), r.Title, o, r.ResolvedFrom, strconv.Itoa(r.Attempts))
	}
	return t.String()
}
