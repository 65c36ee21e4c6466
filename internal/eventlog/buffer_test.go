package eventlog

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

var baseTime = time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func entry(i int, confidence int) model.LogEntry {
	return model.LogEntry{
		ID:              fmt.Sprintf("cam-%d", i),
		StreamID:        "person-detection",
		FrameNumber:     5000 + i,
		Timestamp:       baseTime.Add(time.Duration(i) * time.Second),
		InferenceTimeMs: 20 + i%50,
		Confidence:      confidence,
		DetectionsCount: i % 8,
		Severity:        severity.Classify(confidence),
	}
}

func ids(entries []model.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestIngest_PrependsPreservingOrder(t *testing.T) {
	t.Parallel()
	b := New()

	b.Ingest([]model.LogEntry{entry(1, 90), entry(2, 90)})
	b.Ingest([]model.LogEntry{entry(3, 90), entry(4, 90)})

	assert.Equal(t, []string{"cam-3", "cam-4", "cam-1", "cam-2"}, ids(b.Entries()))
}

func TestIngest_KeepsMostRecentFifty(t *testing.T) {
	t.Parallel()
	b := New()

	const n = 73
	for i := 0; i < n; i++ {
		b.Ingest([]model.LogEntry{entry(i, 70)})
		require.LessOrEqual(t, b.Len(), MaxEntries)
	}

	got := b.Entries()
	require.Len(t, got, MaxEntries)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("cam-%d", n-1-i), e.ID)
	}
}

func TestIngest_EvictedCount(t *testing.T) {
	t.Parallel()
	b := New(WithCapacity(3))

	assert.Equal(t, 0, b.Ingest([]model.LogEntry{entry(1, 10), entry(2, 10)}))
	assert.Equal(t, 1, b.Ingest([]model.LogEntry{entry(3, 10), entry(4, 10)}))
	assert.Equal(t, []string{"cam-3", "cam-4", "cam-1"}, ids(b.Entries()))
	assert.Equal(t, 0, b.Ingest(nil))
}

func TestIngest_OversizedBatch(t *testing.T) {
	t.Parallel()
	b := New(WithCapacity(2))
	b.Ingest([]model.LogEntry{entry(9, 10)})

	evicted := b.Ingest([]model.LogEntry{entry(1, 10), entry(2, 10), entry(3, 10)})
	assert.Equal(t, 2, evicted)
	assert.Equal(t, []string{"cam-1", "cam-2"}, ids(b.Entries()))
}

func TestIngest_DoesNotAliasCaller(t *testing.T) {
	t.Parallel()
	b := New()
	batch := []model.LogEntry{entry(1, 10)}
	b.Ingest(batch)
	batch[0].ID = "mutated"

	assert.Equal(t, "cam-1", b.Entries()[0].ID)
}

func TestFilter(t *testing.T) {
	t.Parallel()
	b := New()
	b.Ingest([]model.LogEntry{entry(1, 10), entry(2, 45), entry(3, 90), entry(4, 20), entry(5, 59)})

	all := b.Filter(severity.FilterAll)
	assert.Equal(t, b.Entries(), all)
	assert.Len(t, all, 5)

	tests := []struct {
		level severity.Level
		want  []string
	}{
		{severity.Error, []string{"cam-1", "cam-4"}},
		{severity.Warning, []string{"cam-2", "cam-5"}},
		{severity.Success, []string{"cam-3"}},
	}
	for _, tt := range tests {
		got := b.Filter(severity.Only(tt.level))
		assert.Equal(t, tt.want, ids(got), string(tt.level))
		for _, e := range got {
			assert.Equal(t, tt.level, e.Severity)
		}
	}
	assert.Equal(t, 5, b.Len(), "filter does not mutate")
}

func TestFilter_NoMatchIsEmpty(t *testing.T) {
	t.Parallel()
	b := New()
	b.Ingest([]model.LogEntry{entry(1, 90)})

	got := b.Filter(severity.Only(severity.Error))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestExportCSV_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, CSVHeader+"\n", New().ExportCSV())
}

func TestExportCSV_Rows(t *testing.T) {
	t.Parallel()
	b := New()
	b.Ingest([]model.LogEntry{entry(1, 10), entry(2, 90)})

	out := b.ExportCSV()
	require.True(t, strings.HasSuffix(out, "\n"))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, b.Len()+1)
	assert.Equal(t, CSVHeader, lines[0])
	assert.Equal(t, "2025-03-14T09:26:54.589Z,person-detection,5001,21,10,1,error", lines[1])
	assert.Equal(t, "2025-03-14T09:26:55.589Z,person-detection,5002,22,90,2,success", lines[2])

	header := strings.Split(lines[0], ",")
	for _, line := range lines[1:] {
		assert.Len(t, strings.Split(line, ","), len(header))
	}
}

func TestExportCSV_IgnoresFilterAndFollowsBufferOrder(t *testing.T) {
	t.Parallel()
	b := New()
	b.Ingest([]model.LogEntry{entry(1, 10)})
	b.Ingest([]model.LogEntry{entry(2, 90)})
	_ = b.Filter(severity.Only(severity.Error))

	lines := strings.Split(strings.TrimSuffix(b.ExportCSV(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], ",5002,")
	assert.Contains(t, lines[2], ",5001,")
}

func TestClear(t *testing.T) {
	t.Parallel()
	b := New()
	b.Ingest([]model.LogEntry{entry(1, 10), entry(2, 10)})
	b.Clear()

	assert.Equal(t, 0, b.Len())
	assert.Equal(t, CSVHeader+"\n", b.ExportCSV())
	b.Clear()
	assert.Equal(t, 0, b.Len())
}

func TestConcurrentIngestHoldsCapacity(t *testing.T) {
	t.Parallel()
	b := New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Ingest([]model.LogEntry{entry(w*1000+i, 50), entry(w*1000+i+500, 50)})
				_ = b.ExportCSV()
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, MaxEntries, b.Len())
}
