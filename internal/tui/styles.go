package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Header style for titles and section headers
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	StyleLabel = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleMuted = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleSubtle = lipgloss.NewStyle().
			Foreground(ColorSubtle).
			Italic(true)

	// Interim transcript prefix
	StyleInterim = lipgloss.NewStyle().
			Foreground(ColorSubtle)

	// Final transcript prefix
	StyleFinal = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	// Keyword occurrences inside a transcript
	StyleKeyword = lipgloss.NewStyle().
			Foreground(ColorKeyword).
			Bold(true).
			Underline(true)
)

// RenderStatus formats a lifecycle state name with a color that matches
// how healthy it is.
func RenderStatus(state string) string {
	switch state {
	case "streaming":
		return StyleSuccess.Render(state)
	case "starting", "draining":
		return StyleWarning.Render(state)
	case "failed":
		return StyleError.Render(state)
	default:
		return StyleMuted.Render(state)
	}
}
