package formatter

import "github.com/charmbracelet/lipgloss"

// Styles is the default terminal palette.
var Styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	Title  lipgloss.Style
	OK     lipgloss.Style
	Err    lipgloss.Style
	Warn   lipgloss.Style
	Muted  lipgloss.Style
	Header lipgloss.Style
	Border lipgloss.Style
}

// NewPalette builds a palette from title, success, error, warning and muted foreground colors.
func NewPalette(t, s, e, w, m string) *Palette {
	return &Palette{
		Title:  NewBold(t).MarginBottom(1),
		OK:     NewBold(s),
		Err:    NewBold(e),
		Warn:   NewStyle(w),
		Muted:  NewEm(m),
		Header: NewBold(t).Padding(0, 1),
		Border: NewStyle(m),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
