package promexport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

func TestOnSnapshot_SetsGauges(t *testing.T) {
	t.Parallel()
	e := New()
	e.OnSnapshot("default", model.MetricsSnapshot{
		CPUPercent:           62,
		MemoryPercent:        71,
		TemperatureCelsius:   58,
		TotalFramesProcessed: 15400,
		ActiveStreams:        3,
	})

	assert.Equal(t, 62.0, testutil.ToFloat64(e.cpu.WithLabelValues("default")))
	assert.Equal(t, 71.0, testutil.ToFloat64(e.memory.WithLabelValues("default")))
	assert.Equal(t, 58.0, testutil.ToFloat64(e.temperature.WithLabelValues("default")))
	assert.Equal(t, 15400.0, testutil.ToFloat64(e.frames.WithLabelValues("default")))
	assert.Equal(t, 3.0, testutil.ToFloat64(e.active.WithLabelValues("default")))
}

func TestOnEntries_CountsBySeverity(t *testing.T) {
	t.Parallel()
	e := New()
	e.OnEntries("default", []model.LogEntry{
		{Severity: severity.Error},
		{Severity: severity.Error},
		{Severity: severity.Success},
	}, 2)
	e.OnEntries("default", nil, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(e.entries.WithLabelValues("default", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.entries.WithLabelValues("default", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.evicted.WithLabelValues("default")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	t.Parallel()
	e := New()
	e.OnSnapshot("default", model.MetricsSnapshot{ActiveStreams: 1})

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `vigil_active_streams{session="default"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
