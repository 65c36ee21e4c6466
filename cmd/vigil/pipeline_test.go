package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/vigil/internal/archive"
	"github.com/tinytelemetry/vigil/internal/httpserver"
	"github.com/tinytelemetry/vigil/internal/hub"
	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/promexport"
	"github.com/tinytelemetry/vigil/internal/session"
	"github.com/tinytelemetry/vigil/internal/severity"
	"github.com/tinytelemetry/vigil/internal/socketrpc"
)

type pipelineStack struct {
	sess    *session.Session
	store   *archive.Store
	insert  *archive.InsertBuffer
	feed    *hub.Hub
	apiAddr string
	sock    string
}

// startPipeline wires a session to every observer and surface the service
// runs, without the signal handling and tick timers.
func startPipeline(t *testing.T) *pipelineStack {
	t.Helper()

	store, err := archive.NewStore(context.Background(), filepath.Join(t.TempDir(), "vigil-e2e.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	insert := archive.NewInsertBuffer(store, archive.InsertBufferConfig{
		BatchSize:     64,
		FlushInterval: 20 * time.Millisecond,
	})
	t.Cleanup(insert.Stop)

	exporter := promexport.New()
	feed := hub.New(nil)
	t.Cleanup(feed.Close)

	sess, err := session.New(session.Config{Name: "e2e", Seed: 99, AutoStart: true},
		session.WithObserver(exporter),
		session.WithObserver(feed),
		session.WithObserver(insert),
	)
	require.NoError(t, err)

	api := httpserver.NewServer("127.0.0.1:0", sess,
		httpserver.WithHistory(store),
		httpserver.WithHub(feed),
		httpserver.WithMetricsHandler(exporter.Handler()),
		httpserver.WithSessionName(sess.Name()),
	)
	require.NoError(t, api.Start())
	t.Cleanup(func() { api.Stop() })

	sock := filepath.Join(t.TempDir(), "vigil-e2e.sock")
	rpc := socketrpc.NewServer(sock, sess, nil)
	require.NoError(t, rpc.Start())
	t.Cleanup(rpc.Stop)

	return &pipelineStack{sess: sess, store: store, insert: insert, feed: feed, apiAddr: api.Addr(), sock: sock}
}

func getJSON(t *testing.T, url string, dest any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if dest != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(body, dest), string(body))
	}
	return resp.StatusCode
}

func TestPipelineEndToEnd(t *testing.T) {
	stack := startPipeline(t)
	base := "http://" + stack.apiAddr

	start := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	for i := range 10 {
		now := start.Add(time.Duration(i) * 2 * time.Second)
		stack.sess.IngestTick(now)
		stack.sess.SampleTick(now)
	}

	// Live view: bounded by capacity, most recent first.
	var live struct {
		Entries []model.LogEntry `json:"entries"`
		Count   int              `json:"count"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/logs", &live))
	assert.Equal(t, 30, live.Count)
	assert.True(t, live.Entries[0].Timestamp.Equal(start.Add(18*time.Second)))

	// Archive receives every entry through the insert buffer.
	require.Eventually(t, func() bool {
		n, err := stack.store.EntryCount(context.Background())
		return err == nil && n == 30
	}, 5*time.Second, 20*time.Millisecond)

	var hist struct {
		Entries []model.LogEntry `json:"entries"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/history/logs?limit=5", &hist))
	require.Len(t, hist.Entries, 5)
	assert.Equal(t, live.Entries[0].ID, hist.Entries[0].ID)

	var counts struct {
		Counts []model.SeverityCount `json:"counts"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/history/severity-counts", &counts))
	var total int64
	for _, c := range counts.Counts {
		total += c.Count
	}
	assert.Equal(t, int64(30), total)

	// Socket and HTTP agree on the same session.
	client, err := socketrpc.Dial(stack.sock)
	require.NoError(t, err)
	defer client.Close()
	entries, err := client.Entries(severity.FilterAll)
	require.NoError(t, err)
	require.Len(t, entries, 30)
	assert.Equal(t, live.Entries[0].ID, entries[0].ID)

	// Prometheus sees the latest snapshot.
	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `vigil_active_streams{session="e2e"} 3`)
}

func TestPipelineStopAllHaltsIngestion(t *testing.T) {
	stack := startPipeline(t)

	client, err := socketrpc.Dial(stack.sock)
	require.NoError(t, err)
	defer client.Close()

	stack.sess.IngestTick(time.Now())
	require.NoError(t, client.SetAll(false))
	for range 3 {
		stack.sess.IngestTick(time.Now())
	}

	entries, err := client.Entries(severity.FilterAll)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	stack.sess.SampleTick(time.Now())
	snap, err := client.Snapshot()
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Zero(t, snap.ActiveStreams)
}

func TestPipelineToggleOverHTTP(t *testing.T) {
	stack := startPipeline(t)
	base := "http://" + stack.apiAddr

	for _, id := range []string{"face-detection", "segmentation"} {
		resp, err := http.Post(fmt.Sprintf("%s/api/streams/%s/toggle", base, id), "application/json", strings.NewReader(""))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	stack.sess.IngestTick(time.Now())

	entries := stack.sess.Entries(severity.FilterAll)
	require.Len(t, entries, 1)
	assert.Equal(t, "person-detection", entries[0].StreamID)

	resp, err := http.Post(base+"/api/streams/ghost/toggle", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
