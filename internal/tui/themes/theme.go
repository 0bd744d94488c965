// Package themes holds the color schemes used by the interactive screens.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Label       lipgloss.Style
	Focused     lipgloss.Style
	Normal      lipgloss.Style
	Help        lipgloss.Style
	StatusError lipgloss.Style
	BorderedBox lipgloss.Style
	Primary     lipgloss.Color
	Success     lipgloss.Color
	Error       lipgloss.Color
	Muted       lipgloss.Color
	Border      lipgloss.Color
}

func newTheme(primary, success, errColor, muted, border, foreground lipgloss.Color) Theme {
	return Theme{
		Primary: primary,
		Success: success,
		Error:   errColor,
		Muted:   muted,
		Border:  border,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(foreground).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(muted).
			MarginBottom(1),
		Label: lipgloss.NewStyle().
			Width(14).
			Foreground(muted),
		Focused: lipgloss.NewStyle().
			Width(14).
			Bold(true).
			Foreground(primary),
		Normal: lipgloss.NewStyle().
			Foreground(foreground),
		Help: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true).
			MarginTop(1),
		StatusError: lipgloss.NewStyle().
			Foreground(errColor).
			Bold(true),
		BorderedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(1, 2),
	}
}

// Default is the default theme.
var Default = newTheme(
	lipgloss.Color("#7c3aed"),
	lipgloss.Color("#10b981"),
	lipgloss.Color("#ef4444"),
	lipgloss.Color("#737373"),
	lipgloss.Color("#404040"),
	lipgloss.Color("#fafafa"),
)

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = newTheme(
	lipgloss.Color("#cba6f7"),
	lipgloss.Color("#a6e3a1"),
	lipgloss.Color("#f38ba8"),
	lipgloss.Color("#6c7086"),
	lipgloss.Color("#45475a"),
	lipgloss.Color("#cdd6f4"),
)

// ByName returns the named theme, falling back to Default.
func ByName(name string) Theme {
	switch name {
	case "catppuccin", "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}
