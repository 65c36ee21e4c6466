package socketrpc_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/vigil/internal/eventlog"
	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/registry"
	"github.com/tinytelemetry/vigil/internal/session"
	"github.com/tinytelemetry/vigil/internal/severity"
	"github.com/tinytelemetry/vigil/internal/socketrpc"
	"github.com/tinytelemetry/vigil/internal/telemetry"
)

var tick = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newSession(t *testing.T) *session.Session {
	t.Helper()
	src := telemetry.SourceFunc(func(ids []string, now time.Time) []model.LogEntry {
		out := make([]model.LogEntry, 0, len(ids))
		for i, id := range ids {
			out = append(out, telemetry.NewEntry(telemetry.Reading{
				StreamID: id, FrameNumber: 6000, InferenceTimeMs: 25,
				Confidence: []int{15, 35, 75}[i%3], DetectionsCount: 4,
			}, now, "rpc"))
		}
		return out
	})
	s, err := session.New(session.Config{AutoStart: true}, session.WithSource(src))
	require.NoError(t, err)
	return s
}

func startTestServer(t *testing.T, dash model.Dashboard) string {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "test.sock")
	srv := socketrpc.NewServer(sockPath, dash, nil)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return sockPath
}

func dial(t *testing.T, sockPath string) *socketrpc.Client {
	t.Helper()
	client, err := socketrpc.Dial(sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRoundtrip(t *testing.T) {
	sess := newSession(t)
	client := dial(t, startTestServer(t, sess))

	streams, err := client.Streams()
	require.NoError(t, err)
	assert.Equal(t, []model.StreamState{
		{ID: "person-detection", Active: true},
		{ID: "face-detection", Active: true},
		{ID: "segmentation", Active: true},
	}, streams)

	snap, err := client.Snapshot()
	require.NoError(t, err)
	assert.Nil(t, snap)

	sess.IngestTick(tick)
	sess.SampleTick(tick)

	entries, err := client.Entries(severity.FilterAll)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, tick.Equal(entries[0].Timestamp))
	assert.Equal(t, sess.Entries(severity.FilterAll)[0].ID, entries[0].ID)

	errs, err := client.Entries(severity.Only(severity.Error))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "person-detection", errs[0].StreamID)

	snap, err = client.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.ActiveStreams)

	csv, err := client.ExportCSV()
	require.NoError(t, err)
	assert.Equal(t, sess.ExportCSV(), csv)
	assert.True(t, strings.HasPrefix(csv, eventlog.CSVHeader+"\n"))

	require.NoError(t, client.ClearLog())
	assert.Empty(t, sess.Entries(severity.FilterAll))
}

func TestToggleAndSetAll(t *testing.T) {
	sess := newSession(t)
	client := dial(t, startTestServer(t, sess))

	require.NoError(t, client.Toggle("segmentation"))
	assert.Equal(t, []string{"person-detection", "face-detection"}, sess.ActiveIDs())

	require.NoError(t, client.SetStream("segmentation", true))
	assert.Equal(t, 3, sess.ActiveCount())

	require.NoError(t, client.SetAll(false))
	assert.Zero(t, sess.ActiveCount())
	require.NoError(t, client.SetAll(true))
	assert.Equal(t, 3, sess.ActiveCount())
}

func TestUnknownStreamKeepsSentinel(t *testing.T) {
	client := dial(t, startTestServer(t, newSession(t)))

	err := client.Toggle("ghost")
	require.ErrorIs(t, err, registry.ErrUnknownStream)
	var unknown *registry.UnknownStreamError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.ID)
}

func TestMode(t *testing.T) {
	sess := newSession(t)
	client := dial(t, startTestServer(t, sess))

	m, err := client.Mode()
	require.NoError(t, err)
	assert.Equal(t, model.ModeTraffic, m)

	require.NoError(t, client.SetMode(model.ModeAnomaly))
	assert.Equal(t, model.ModeAnomaly, sess.Mode())
	require.Error(t, client.SetMode("bogus"))
}

func TestStaleSocketIsReplaced(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "stale.sock")
	require.NoError(t, os.WriteFile(sockPath, nil, 0o600))

	srv := socketrpc.NewServer(sockPath, newSession(t), nil)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	client := dial(t, sockPath)
	_, err := client.Streams()
	require.NoError(t, err)
}

func TestSecondServerRefused(t *testing.T) {
	sess := newSession(t)
	sockPath := startTestServer(t, sess)

	second := socketrpc.NewServer(sockPath, sess, nil)
	err := second.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already listening")
}

func TestStopRemovesSocket(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "gone.sock")
	srv := socketrpc.NewServer(sockPath, newSession(t), nil)
	require.NoError(t, srv.Start())
	client := dial(t, sockPath)
	_, err := client.Streams()
	require.NoError(t, err)

	srv.Stop()
	_, err = os.Stat(sockPath)
	assert.True(t, os.IsNotExist(err))
	assert.NotPanics(t, srv.Stop)
}

func TestStreamsCarryPerStreamMetrics(t *testing.T) {
	sess := newSession(t)
	client := dial(t, startTestServer(t, sess))
	require.NoError(t, client.Toggle("face-detection"))
	sess.StreamTick(tick)

	streams, err := client.Streams()
	require.NoError(t, err)
	require.Len(t, streams, 3)
	for _, st := range streams {
		if st.ID == "face-detection" {
			assert.False(t, st.Active)
			assert.Zero(t, st.Metrics)
			continue
		}
		assert.GreaterOrEqual(t, st.Metrics.FrameRate, 25)
		assert.Less(t, st.Metrics.FrameRate, 35)
		assert.GreaterOrEqual(t, st.Metrics.InferenceTimeMs, 20)
		assert.True(t, tick.Equal(st.Metrics.UpdatedAt))
	}
}
