package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/vigil/internal/session"
)

// Update handles messages
func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLogView()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case TickMsg:
		if m.fetchInFlight {
			return m, m.tickCmd()
		}
		m.fetchInFlight = true
		return m, tea.Batch(m.fetchCmd(), m.tickCmd())

	case dataLoadedMsg:
		m.fetchInFlight = false
		m.applyData(msg)
		return m, nil

	case BackendStoppedMsg:
		if msg.Err != nil {
			m.backendErr = msg.Err.Error()
		}
		return m, nil

	case actionDoneMsg:
		if msg.err != nil {
			m.lastError = msg.err.Error()
			m.status = ""
		} else {
			m.lastError = ""
			m.status = msg.status
		}
		return m, m.refreshNow()
	}

	return m, nil
}

// refreshNow fetches immediately unless a fetch is already running.
func (m *DashboardModel) refreshNow() tea.Cmd {
	if m.fetchInFlight {
		return nil
	}
	m.fetchInFlight = true
	return m.fetchCmd()
}

func (m *DashboardModel) applyData(msg dataLoadedMsg) {
	if msg.err != nil {
		m.lastError = msg.err.Error()
		return
	}
	m.lastError = ""
	m.lastOKAt = m.clock.Now()
	m.streams = msg.streams
	m.entries = msg.entries
	m.snapshot = msg.snapshot
	if m.cursor >= len(m.streams) {
		m.cursor = max(len(m.streams)-1, 0)
	}
	m.logView.SetContent(m.renderLogLines())
}

func (m *DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.resizeLogView()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.streams)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.PageUp):
		m.logView.HalfPageUp()

	case key.Matches(msg, m.keys.PageDown):
		m.logView.HalfPageDown()

	case key.Matches(msg, m.keys.Toggle):
		if len(m.streams) == 0 {
			return m, nil
		}
		return m, m.toggleCmd(m.streams[m.cursor].ID)

	case key.Matches(msg, m.keys.ToggleAll):
		return m, m.toggleAllCmd(!m.allActive())

	case key.Matches(msg, m.keys.Filter):
		m.filter = m.filter.Next()
		m.status = "filter: " + m.filter.String()
		return m, m.refreshNow()

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearCmd()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.refreshNow()
	}
	return m, nil
}

func (m *DashboardModel) toggleCmd(id string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.Toggle(id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "toggled " + id}
	}
}

// toggleAllCmd starts every stream when start is true, else stops them all.
func (m *DashboardModel) toggleAllCmd(start bool) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.SetAll(start); err != nil {
			return actionDoneMsg{err: err}
		}
		if start {
			return actionDoneMsg{status: "started all streams"}
		}
		return actionDoneMsg{status: "stopped all streams"}
	}
}

func (m *DashboardModel) clearCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.ClearLog(); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "log cleared"}
	}
}

// exportCmd writes the full unfiltered log to frame-logs-<date>.csv.
func (m *DashboardModel) exportCmd() tea.Cmd {
	client := m.client
	path := filepath.Join(m.exportDir, session.ExportFileName(m.clock.Now()))
	return func() tea.Msg {
		csv, err := client.ExportCSV()
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
			return actionDoneMsg{err: fmt.Errorf("write export: %w", err)}
		}
		return actionDoneMsg{status: "exported " + path}
	}
}
