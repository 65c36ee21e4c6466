package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

// DefaultRefreshInterval is how often the dashboard polls its client.
const DefaultRefreshInterval = time.Second

// Config configures a DashboardModel.
type Config struct {
	// RefreshInterval defaults to DefaultRefreshInterval.
	RefreshInterval time.Duration
	// ExportDir receives CSV exports. Empty means the working directory.
	ExportDir string
	// Source names the data source in the status bar ("socket" or "local").
	Source string
	Clock  clockwork.Clock
}

// DashboardModel is the terminal dashboard over a model.DashboardClient.
type DashboardModel struct {
	client model.DashboardClient
	keys   KeyMap
	help   help.Model

	refreshInterval time.Duration
	exportDir       string
	source          string
	clock           clockwork.Clock

	width  int
	height int

	streams  []model.StreamState
	entries  []model.LogEntry
	snapshot *model.MetricsSnapshot
	cursor   int
	filter   severity.Filter

	logView  viewport.Model
	showHelp bool

	// Guards against overlapping fetches when the client is slow.
	fetchInFlight bool

	status     string
	lastError  string
	backendErr string
	lastOKAt   time.Time
}

// TickMsg represents periodic updates.
type TickMsg time.Time

// dataLoadedMsg carries one poll of the client back to Update.
type dataLoadedMsg struct {
	streams  []model.StreamState
	entries  []model.LogEntry
	snapshot *model.MetricsSnapshot
	err      error
}

// BackendStoppedMsg reports that the data behind the client stopped with an
// error. The message stays on the status line.
type BackendStoppedMsg struct {
	Err error
}

// actionDoneMsg reports the outcome of a user action.
type actionDoneMsg struct {
	status string
	err    error
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(client model.DashboardClient, cfg Config) *DashboardModel {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Source == "" {
		cfg.Source = "socket"
	}
	return &DashboardModel{
		client:          client,
		keys:            DefaultKeyMap(),
		help:            help.New(),
		refreshInterval: cfg.RefreshInterval,
		exportDir:       cfg.ExportDir,
		source:          cfg.Source,
		clock:           cfg.Clock,
		filter:          severity.FilterAll,
		logView:         viewport.New(80, 10),
		width:           80,
		height:          24,
	}
}

// Init starts the first fetch and the refresh ticker.
func (m *DashboardModel) Init() tea.Cmd {
	m.fetchInFlight = true
	return tea.Batch(m.fetchCmd(), m.tickCmd())
}

func (m *DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchCmd polls streams, entries and the latest snapshot in one round.
func (m *DashboardModel) fetchCmd() tea.Cmd {
	client := m.client
	filter := m.filter
	return func() tea.Msg {
		streams, err := client.Streams()
		if err != nil {
			return dataLoadedMsg{err: err}
		}
		entries, err := client.Entries(filter)
		if err != nil {
			return dataLoadedMsg{err: err}
		}
		snap, err := client.Snapshot()
		if err != nil {
			return dataLoadedMsg{err: err}
		}
		return dataLoadedMsg{streams: streams, entries: entries, snapshot: snap}
	}
}

// Filter returns the active severity filter.
func (m *DashboardModel) Filter() severity.Filter { return m.filter }

// Cursor returns the selected stream index.
func (m *DashboardModel) Cursor() int { return m.cursor }

// Status returns the last status line message.
func (m *DashboardModel) Status() string { return m.status }

// allActive reports whether every known stream is active.
func (m *DashboardModel) allActive() bool {
	if len(m.streams) == 0 {
		return false
	}
	for _, s := range m.streams {
		if !s.Active {
			return false
		}
	}
	return true
}
