package model

import "github.com/tinytelemetry/vigil/internal/severity"

// StreamToggler mutates stream activity.
type StreamToggler interface {
	Toggle(id string) error
	SetStream(id string, active bool) error
	SetAll(active bool)
}

// DashboardReader provides the read-only render contract. All methods are
// safe to poll at arbitrary rates.
type DashboardReader interface {
	Entries(filter severity.Filter) []LogEntry
	Snapshot() (MetricsSnapshot, bool)
	ActiveCount() int
	ActiveIDs() []string
	Streams() []StreamState
	ExportCSV() string
}

// Dashboard is the in-process contract served by HTTP and socket RPC.
type Dashboard interface {
	DashboardReader
	StreamToggler
	ClearLog()
	Mode() Mode
	SetMode(m Mode)
}

// DashboardClient is the remote form of Dashboard used by the TUI and CLI.
// Every call may fail on transport.
type DashboardClient interface {
	Streams() ([]StreamState, error)
	Toggle(id string) error
	SetAll(active bool) error
	Entries(filter severity.Filter) ([]LogEntry, error)
	Snapshot() (*MetricsSnapshot, error)
	ExportCSV() (string, error)
	ClearLog() error
}
