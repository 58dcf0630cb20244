// Package styles provides colour themes and styling for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the colour palette of the connection view.
type Theme struct {
	Accent     lipgloss.Color
	Text       lipgloss.Color
	Subtle     lipgloss.Color
	Connected  lipgloss.Color
	Pending    lipgloss.Color
	Failure    lipgloss.Color
	Frame      lipgloss.Color
	BarSurface lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#7C3AED"),
		Text:       lipgloss.Color("#CDD6F4"),
		Subtle:     lipgloss.Color("#6C7086"),
		Connected:  lipgloss.Color("#A6E3A1"),
		Pending:    lipgloss.Color("#F9E2AF"),
		Failure:    lipgloss.Color("#F38BA8"),
		Frame:      lipgloss.Color("#45475A"),
		BarSurface: lipgloss.Color("#181825"),
	}
}

// Styles contains pre-configured lipgloss styles.
type Styles struct {
	theme *Theme

	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Muted  lipgloss.Style
	Error  lipgloss.Style
	Notice lipgloss.Style

	// Badges mark the connection status.
	BadgeConnected    lipgloss.Style
	BadgeDisconnected lipgloss.Style
	BadgePending      lipgloss.Style

	// Panel frames the connection card.
	Panel     lipgloss.Style
	StatusBar lipgloss.Style
	Help      lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	return &Styles{
		theme: theme,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Accent),
		Label: lipgloss.NewStyle().
			Foreground(theme.Subtle).
			Width(12),
		Value: lipgloss.NewStyle().
			Foreground(theme.Text),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Subtle),
		Error: lipgloss.NewStyle().
			Foreground(theme.Failure),
		Notice: lipgloss.NewStyle().
			Foreground(theme.Pending),

		BadgeConnected:    badge.Foreground(theme.BarSurface).Background(theme.Connected),
		BadgeDisconnected: badge.Foreground(theme.Text).Background(theme.Frame),
		BadgePending:      badge.Foreground(theme.BarSurface).Background(theme.Pending),

		Panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Frame).
			Padding(1, 2),
		StatusBar: lipgloss.NewStyle().
			Foreground(theme.Subtle).
			Background(theme.BarSurface).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Foreground(theme.Subtle),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the theme used by these styles.
func (s *Styles) Theme() *Theme {
	return s.theme
}
