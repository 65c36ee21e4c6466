package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/vigil/internal/eventlog"
	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

func TestManager_CreateAndGet(t *testing.T) {
	t.Parallel()
	m := NewManager()

	_, err := m.Create(Config{Name: "north", Streams: []string{"gate"}, AutoStart: true})
	require.NoError(t, err)
	_, err = m.Create(Config{Name: "south"})
	require.NoError(t, err)
	_, err = m.Create(Config{Name: "north"})
	require.Error(t, err)

	assert.Equal(t, []string{"north", "south"}, m.Names())
	north, ok := m.Get("north")
	require.True(t, ok)
	assert.Equal(t, 1, north.ActiveCount())
	_, ok = m.Get("west")
	assert.False(t, ok)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	m := NewManager()
	_, err := m.Create(Config{Name: "a", IngestInterval: time.Hour, SampleInterval: time.Hour})
	require.NoError(t, err)
	_, err = m.Create(Config{Name: "b", IngestInterval: time.Hour, SampleInterval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
}

func TestLocal_AdaptsSession(t *testing.T) {
	t.Parallel()
	s := newTestSession(t, WithSource(fixedSource(10)))
	var c model.DashboardClient = Local{D: s}

	snap, err := c.Snapshot()
	require.NoError(t, err)
	assert.Nil(t, snap)

	s.IngestTick(tickTime)
	s.SampleTick(tickTime)

	entries, err := c.Entries(severity.Only(severity.Error))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	snap, err = c.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.ActiveStreams)

	require.NoError(t, c.Toggle("segmentation"))
	require.Error(t, c.Toggle("missing"))
	require.NoError(t, c.SetAll(false))
	streams, err := c.Streams()
	require.NoError(t, err)
	for _, st := range streams {
		assert.False(t, st.Active)
	}

	require.NoError(t, c.ClearLog())
	out, err := c.ExportCSV()
	require.NoError(t, err)
	assert.Equal(t, eventlog.CSVHeader+"\n", out)
}
