package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSnapshotter struct {
	dbPath string
	data   []byte
	err    error
}

func (f *fakeSnapshotter) DBPath() string { return f.dbPath }

func (f *fakeSnapshotter) SnapshotTo(_ context.Context, dstPath string) error {
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dstPath, f.data, 0o644)
}

type recordingUploader struct {
	mu    sync.Mutex
	paths []string
}

func (u *recordingUploader) UploadFile(_ context.Context, localPath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, filepath.Base(localPath))
	return nil
}

func (u *recordingUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

func TestNewManager_Disabled(t *testing.T) {
	t.Parallel()

	m, err := NewManager(context.Background(), &fakeSnapshotter{dbPath: "/tmp/vigil.duckdb"}, Config{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store Snapshotter
		cfg   Config
	}{
		{"nil store", nil, Config{Enabled: true, LocalDir: t.TempDir()}},
		{"in-memory store", &fakeSnapshotter{}, Config{Enabled: true, LocalDir: t.TempDir()}},
		{"missing local dir", &fakeSnapshotter{dbPath: "/tmp/vigil.duckdb"}, Config{Enabled: true}},
		{"bad bucket url", &fakeSnapshotter{dbPath: "/tmp/vigil.duckdb"}, Config{
			Enabled: true, LocalDir: t.TempDir(), BucketURL: "https://bucket",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewManager(context.Background(), tt.store, tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestRunOnce_CreatesAndPrunesLocalBackups(t *testing.T) {
	t.Parallel()

	localDir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	uploader := &recordingUploader{}
	m := &Manager{
		store:    &fakeSnapshotter{dbPath: "/tmp/vigil.duckdb", data: []byte("snapshot")},
		cfg:      Config{Enabled: true, LocalDir: localDir, KeepLast: 2},
		uploader: uploader,
		clock:    clock,
		logger:   nopLogger(),
	}

	for range 3 {
		require.NoError(t, m.RunOnce(context.Background()))
		clock.Advance(time.Minute)
	}

	files, err := filepath.Glob(filepath.Join(localDir, "vigil-*.duckdb"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "vigil-20250601-120100.duckdb", filepath.Base(files[0]))
	assert.Equal(t, "vigil-20250601-120200.duckdb", filepath.Base(files[1]))
	assert.Equal(t, []string{
		"vigil-20250601-120000.duckdb",
		"vigil-20250601-120100.duckdb",
		"vigil-20250601-120200.duckdb",
	}, uploader.uploaded())
}

func TestRunOnce_SnapshotError(t *testing.T) {
	t.Parallel()

	m := &Manager{
		store:  &fakeSnapshotter{dbPath: "/tmp/vigil.duckdb", err: errors.New("locked")},
		cfg:    Config{LocalDir: t.TempDir(), KeepLast: 1},
		clock:  clockwork.NewFakeClock(),
		logger: nopLogger(),
	}
	err := m.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "locked")
}

func TestNewManager_PeriodicSnapshots(t *testing.T) {
	t.Parallel()

	localDir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	uploader := &recordingUploader{}

	m, err := NewManager(context.Background(),
		&fakeSnapshotter{dbPath: "/tmp/vigil.duckdb", data: []byte("x")},
		Config{Enabled: true, LocalDir: localDir, Interval: time.Hour, KeepLast: 5},
		WithClock(clock), WithUploader(uploader),
	)
	require.NoError(t, err)
	require.NotNil(t, m)
	t.Cleanup(m.Stop)

	assert.Len(t, uploader.uploaded(), 1, "startup snapshot")

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return len(uploader.uploaded()) == 2 },
		2*time.Second, 10*time.Millisecond)
}

type blockingUploader struct {
	started chan struct{}
	once    sync.Once
}

func (u *blockingUploader) UploadFile(ctx context.Context, _ string) error {
	u.once.Do(func() { close(u.started) })
	<-ctx.Done()
	return ctx.Err()
}

func TestStop_CancelsInFlightUpload(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	uploader := &blockingUploader{started: make(chan struct{})}
	m := &Manager{
		store:    &fakeSnapshotter{dbPath: "/tmp/vigil.duckdb", data: []byte("snapshot")},
		cfg:      Config{Enabled: true, LocalDir: t.TempDir(), KeepLast: 2},
		uploader: uploader,
		clock:    clock,
		logger:   nopLogger(),
		done:     make(chan struct{}),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	ticker := clock.NewTicker(time.Minute)
	m.wg.Add(1)
	go m.loop(ticker)
	clock.Advance(time.Minute)

	select {
	case <-uploader.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upload to start")
	}

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return; upload likely not canceled")
	}
}

func nopLogger() *zap.Logger { return zap.NewNop() }
