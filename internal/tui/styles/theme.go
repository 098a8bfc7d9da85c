package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serial-bridge/internal/bridge"
)

// Catppuccin Mocha
var (
	Base     = lipgloss.Color("#1e1e2e")
	Surface0 = lipgloss.Color("#313244")
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086")
	Subtext0 = lipgloss.Color("#a6adc8")
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4")

	Blue   = lipgloss.Color("#89b4fa")
	Sky    = lipgloss.Color("#89dceb")
	Green  = lipgloss.Color("#a6e3a1")
	Yellow = lipgloss.Color("#f9e2af")
	Peach  = lipgloss.Color("#fab387")
	Red    = lipgloss.Color("#f38ba8")
	Mauve  = lipgloss.Color("#cba6f7")
)

var (
	// Header styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve).
			Background(Surface0).
			Padding(0, 1)

	// Content area styles
	ContentBorderStyle = lipgloss.NewStyle().
				BorderTop(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(Surface1)

	HelpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Surface2).
			Padding(1, 2).
			Margin(1, 0)

	// Error styles
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Red)

	// Info styles
	InfoStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Mauve)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Green)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Overlay0)
)

// StateStyle colors a session state.
func StateStyle(state bridge.State) lipgloss.Style {
	switch state {
	case bridge.StateRunning:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case bridge.StateConfiguring:
		return lipgloss.NewStyle().Foreground(Yellow).Bold(true)
	case bridge.StateFaulted:
		return lipgloss.NewStyle().Foreground(Red).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(Subtext0)
	}
}

// StateIndicator is the single character shown next to a session.
func StateIndicator(state bridge.State) string {
	switch state {
	case bridge.StateRunning:
		return "●"
	case bridge.StateConfiguring:
		return "○"
	case bridge.StateFaulted:
		return "✗"
	default:
		return "○"
	}
}
