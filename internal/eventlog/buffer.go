package eventlog

import (
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

// MaxEntries is the default buffer capacity.
const MaxEntries = model.DefaultLogCapacity

// CSVHeader is the first line of every export.
const CSVHeader = "Timestamp,Stream ID,Frame Number,Inference Time (ms),Confidence (%),Detections,Status"

// Buffer is a bounded, most-recent-first log of classified entries.
// Eviction is strict FIFO by insertion; there is no age-based expiry.
type Buffer struct {
	mu       sync.RWMutex
	entries  []model.LogEntry
	capacity int
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithCapacity overrides MaxEntries. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.capacity = n
		}
	}
}

// New creates an empty buffer.
func New(opts ...Option) *Buffer {
	b := &Buffer{capacity: MaxEntries}
	for _, opt := range opts {
		opt(b)
	}
	b.entries = make([]model.LogEntry, 0, b.capacity)
	return b
}

// Ingest prepends candidates, keeping their relative order, then drops the
// oldest entries beyond capacity. It returns how many entries were evicted.
// Prepend and truncation happen under one lock.
func (b *Buffer) Ingest(candidates []model.LogEntry) int {
	if len(candidates) == 0 {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	total := len(candidates) + len(b.entries)
	kept := min(total, b.capacity)

	next := make([]model.LogEntry, 0, b.capacity)
	next = append(next, candidates[:min(len(candidates), kept)]...)
	if room := kept - len(next); room > 0 {
		next = append(next, b.entries[:room]...)
	}
	b.entries = next
	return total - kept
}

// Filter returns a copy of the entries passing f, in buffer order.
func (b *Buffer) Filter(f severity.Filter) []model.LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if f.All() {
		return append(make([]model.LogEntry, 0, len(b.entries)), b.entries...)
	}
	out := make([]model.LogEntry, 0, len(b.entries))
	for _, e := range b.entries {
		if f.Match(e.Severity) {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a copy of the whole buffer.
func (b *Buffer) Entries() []model.LogEntry {
	return b.Filter(severity.FilterAll)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make([]model.LogEntry, 0, b.capacity)
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int { return b.capacity }

// ExportCSV serializes the entire unfiltered buffer. Fields are joined
// verbatim without quoting; stream ids are validated by the registry so
// they never contain separators.
func (b *Buffer) ExportCSV() string {
	var sb strings.Builder
	_ = b.WriteCSV(&sb)
	return sb.String()
}

// WriteCSV streams the export to w.
func (b *Buffer) WriteCSV(w io.Writer) error {
	entries := b.Entries()

	if _, err := io.WriteString(w, CSVHeader+"\n"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := io.WriteString(w, FormatCSVRow(e)); err != nil {
			return err
		}
	}
	return nil
}

// FormatCSVRow renders one newline-terminated export row.
func FormatCSVRow(e model.LogEntry) string {
	fields := []string{
		e.FormatTimestamp(),
		e.StreamID,
		strconv.Itoa(e.FrameNumber),
		strconv.Itoa(e.InferenceTimeMs),
		strconv.Itoa(e.Confidence),
		strconv.Itoa(e.DetectionsCount),
		string(e.Severity),
	}
	return strings.Join(fields, ",") + "\n"
}
