package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/vigil/internal/model"
)

const (
	streamsPanelWidth = 54
	// header, gauges panel, status and help lines plus panel borders
	chromeHeight = 16
)

// View renders the dashboard.
func (m *DashboardModel) View() string {
	header := headerStyle.Width(m.width).Render(m.renderHeader())

	streams := sectionStyle.Width(streamsPanelWidth).Render(
		chartTitleStyle.Render("Streams") + "\n" + m.renderStreams())
	metrics := sectionStyle.Render(
		chartTitleStyle.Render("System Metrics") + "\n" + renderGauges(m.snapshot))
	top := lipgloss.JoinHorizontal(lipgloss.Top, streams, metrics)

	logTitle := fmt.Sprintf("Frame Log (%s, %d entries)", m.filter.String(), len(m.entries))
	logs := sectionStyle.Width(max(m.width-2, 20)).Render(
		chartTitleStyle.Render(logTitle) + "\n" + m.logView.View())

	return lipgloss.JoinVertical(lipgloss.Left, header, top, logs, m.renderStatus(), m.help.View(m.keys))
}

func (m *DashboardModel) renderHeader() string {
	active := 0
	for _, s := range m.streams {
		if s.Active {
			active++
		}
	}
	return fmt.Sprintf("vigil  %d/%d streams active  [%s]", active, len(m.streams), m.source)
}

func (m *DashboardModel) renderStreams() string {
	if len(m.streams) == 0 {
		return dimStyle.Render("no streams")
	}
	lines := make([]string, len(m.streams))
	for i, s := range m.streams {
		line := formatStream(s)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// formatStream renders one stream row with its live status. Stopped
// streams show dashes.
func formatStream(s model.StreamState) string {
	if !s.Active {
		dot := lipgloss.NewStyle().Foreground(ColorRed).Render("●")
		return fmt.Sprintf("%s %-18s %-7s %s", dot, s.ID, "stopped", dimStyle.Render("  -- fps   -- ms     -- fr"))
	}
	dot := lipgloss.NewStyle().Foreground(ColorGreen).Render("●")
	return fmt.Sprintf("%s %-18s %-7s %4d fps %4d ms %6d fr", dot, s.ID, "running",
		s.Metrics.FrameRate, s.Metrics.InferenceTimeMs, s.Metrics.ProcessedFrames)
}

// renderLogLines formats entries newest first, one per line.
func (m *DashboardModel) renderLogLines() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("no log entries")
	}
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		lines[i] = formatEntry(e)
	}
	return strings.Join(lines, "\n")
}

func formatEntry(e model.LogEntry) string {
	status := severityStyle(e.Severity).Render(fmt.Sprintf("%-7s", strings.ToUpper(string(e.Severity))))
	return fmt.Sprintf("%s  %-18s #%-6d %4dms %3d%% %2d det  %s",
		e.FormatTimestamp(), e.StreamID, e.FrameNumber, e.InferenceTimeMs,
		e.Confidence, e.DetectionsCount, status)
}

func (m *DashboardModel) renderStatus() string {
	if m.backendErr != "" {
		return errorLineStyle.Render("stopped: " + m.backendErr)
	}
	if m.lastError != "" {
		return errorLineStyle.Render("error: " + m.lastError)
	}
	if m.status != "" {
		return helpStyle.Render(m.status)
	}
	if !m.lastOKAt.IsZero() {
		return helpStyle.Render("updated " + m.lastOKAt.Format("15:04:05"))
	}
	return helpStyle.Render("connecting...")
}

// resizeLogView fits the log viewport into the space left after the fixed panels.
func (m *DashboardModel) resizeLogView() {
	chrome := chromeHeight
	if m.showHelp {
		chrome += 4
	}
	m.logView.Width = max(m.width-4, 20)
	m.logView.Height = max(m.height-chrome, 3)
	m.help.Width = m.width
}
