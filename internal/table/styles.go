package table

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorYellow = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorGray   = lipgloss.Color("245")
	colorWhite  = lipgloss.Color("255")
	colorBorder = lipgloss.Color("240")
)

// Styles defines the visual styles for the editor UI
type Styles struct {
	Box      lipgloss.Style
	Title    lipgloss.Style
	Header   lipgloss.Style
	Text     lipgloss.Style
	Faint    lipgloss.Style
	Selected lipgloss.Style
	Editing  lipgloss.Style
	Disabled lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	OK       lipgloss.Style
	Overlay  lipgloss.Style
}

// DefaultStyles returns the default style configuration
func DefaultStyles() Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGray),

		Text: lipgloss.NewStyle().
			Foreground(colorWhite),

		Faint: lipgloss.NewStyle().
			Foreground(colorGray),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("236")).
			Foreground(colorWhite),

		Editing: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGreen),

		Disabled: lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")),

		Warning: lipgloss.NewStyle().
			Foreground(colorYellow),

		Error: lipgloss.NewStyle().
			Foreground(colorRed),

		OK: lipgloss.NewStyle().
			Foreground(colorGreen),

		Overlay: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorYellow).
			Padding(1, 2),
	}
}
