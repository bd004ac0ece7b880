// Package ui provides the tabbed terminal viewer for parsed classfiles.
package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the viewer's lipgloss styles for one theme.
type Styles struct {
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	TabBar    lipgloss.Style
	Content   lipgloss.Style
	Title     lipgloss.Style
	Selected  lipgloss.Style
	Status    lipgloss.Style
}

// NewStyles builds the style set for the given theme name. Anything other
// than "light" gets the dark palette.
func NewStyles(theme string) Styles {
	var (
		accent lipgloss.Color
		fg     lipgloss.Color
		muted  lipgloss.Color
	)
	if theme == "light" {
		accent = lipgloss.Color("#101F38")
		fg = lipgloss.Color("#101F38")
		muted = lipgloss.Color("#8a8f98")
	} else {
		accent = lipgloss.Color("#8BC34A")
		fg = lipgloss.Color("#f2f2f2")
		muted = lipgloss.Color("#5c6773")
	}

	border := lipgloss.RoundedBorder()
	return Styles{
		Tab: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(0, 1),
		TabBar: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(muted),
		Content: lipgloss.NewStyle().
			BorderStyle(border).
			BorderForeground(muted).
			Padding(0, 1),
		Title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		Selected: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
		Status: lipgloss.NewStyle().
			Foreground(fg).
			Faint(true),
	}
}
