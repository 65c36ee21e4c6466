// Package telemetry produces candidate log entries for active streams.
//
// A Source is polled once per ingest tick. The synthetic implementation
// stands in for a real inference pipeline; production deployments plug in
// their own Source without touching the buffer or sampler.
package telemetry

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

// Source proposes at most one candidate entry per active stream per tick.
// It must return nothing for an empty active set.
type Source interface {
	Candidates(activeIDs []string, now time.Time) []model.LogEntry
}

// SourceFunc adapts a function to Source.
type SourceFunc func(activeIDs []string, now time.Time) []model.LogEntry

// Candidates calls f.
func (f SourceFunc) Candidates(activeIDs []string, now time.Time) []model.LogEntry {
	return f(activeIDs, now)
}

// Reading is one raw inference result before classification.
type Reading struct {
	StreamID        string
	FrameNumber     int
	InferenceTimeMs int
	Confidence      int
	DetectionsCount int
}

// NewEntry builds a classified entry from a reading. Confidence is clamped
// to [0,100] and severity is fixed here.
func NewEntry(r Reading, now time.Time, salt string) model.LogEntry {
	conf := min(max(r.Confidence, 0), 100)
	return model.LogEntry{
		ID:              EntryID(r.StreamID, now, salt),
		StreamID:        r.StreamID,
		FrameNumber:     max(r.FrameNumber, 0),
		Timestamp:       now,
		InferenceTimeMs: max(r.InferenceTimeMs, 0),
		Confidence:      conf,
		DetectionsCount: max(r.DetectionsCount, 0),
		Severity:        severity.Classify(conf),
	}
}

// EntryID joins stream id, generation time and a uniqueness salt.
func EntryID(streamID string, now time.Time, salt string) string {
	return fmt.Sprintf("%s-%d-%s", streamID, now.UnixMilli(), salt)
}
