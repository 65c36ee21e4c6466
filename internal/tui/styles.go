package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/vigil/internal/severity"
)

var (
	ColorNavy  = lipgloss.Color("#1B2A41")
	ColorGreen = lipgloss.Color("#44FF44")
	ColorAmber = lipgloss.Color("#FFAA00")
	ColorRed   = lipgloss.Color("#FF4444")
	ColorDim   = lipgloss.Color("240")
	ColorBlue  = lipgloss.Color("39")
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("25")).
			Bold(true)

	errorLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6666"))

	dimStyle = lipgloss.NewStyle().Foreground(ColorDim)
)

// usageColor picks the gauge colour tier for a 0-100 reading.
func usageColor(v float64) lipgloss.Color {
	switch {
	case v < 50:
		return ColorGreen
	case v < 80:
		return ColorAmber
	default:
		return ColorRed
	}
}

func severityColor(l severity.Level) lipgloss.Color {
	switch l {
	case severity.Error:
		return ColorRed
	case severity.Warning:
		return ColorAmber
	default:
		return ColorGreen
	}
}

func severityStyle(l severity.Level) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(severityColor(l)).Bold(l == severity.Error)
}
