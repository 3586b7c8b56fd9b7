package ui

import "github.com/charmbracelet/lipgloss"

// Palette, as 256-colour codes.
var (
	ColorAccent  = lipgloss.Color("205")
	ColorMuted   = lipgloss.Color("241")
	ColorText    = lipgloss.Color("252")
	ColorSuccess = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorError   = lipgloss.Color("160")
	ColorAdjust  = lipgloss.Color("87")
)

var (
	StyleAccent  = lipgloss.NewStyle().Foreground(ColorAccent)
	StyleSubtle  = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)

	StyleHeader = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Padding(0, 1)
	StyleLabel  = lipgloss.NewStyle().Foreground(ColorMuted).Width(14)
)

// Marker is the one-cell glyph that leads a progress line.
type Marker struct {
	Glyph string
	Style lipgloss.Style
}

func (m Marker) String() string { return m.Style.Render(m.Glyph) }

// Markers for pipeline progress.
var (
	MarkStep   = Marker{"•", StyleSubtle}
	MarkDone   = Marker{"✓", StyleSuccess}
	MarkWarn   = Marker{"!", StyleWarning}
	MarkAdjust = Marker{"↻", lipgloss.NewStyle().Foreground(ColorAdjust).Bold(true)}
	MarkFail   = Marker{"✗", StyleError.Bold(true)}
	MarkAgent  = Marker{"★", StyleAccent.Bold(true)}
)
