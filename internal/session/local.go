package session

import (
	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

// Local adapts an in-process dashboard to the client contract so the TUI
// can run without a server.
type Local struct {
	D model.Dashboard
}

func (l Local) Streams() ([]model.StreamState, error) { return l.D.Streams(), nil }
func (l Local) Toggle(id string) error                { return l.D.Toggle(id) }

func (l Local) SetAll(active bool) error {
	l.D.SetAll(active)
	return nil
}

func (l Local) Entries(filter severity.Filter) ([]model.LogEntry, error) {
	return l.D.Entries(filter), nil
}

func (l Local) Snapshot() (*model.MetricsSnapshot, error) {
	snap, ok := l.D.Snapshot()
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (l Local) ExportCSV() (string, error) { return l.D.ExportCSV(), nil }

func (l Local) ClearLog() error {
	l.D.ClearLog()
	return nil
}

var _ model.DashboardClient = Local{}
