package telemetry

import (
	"sync"
	"time"

	"github.com/tinytelemetry/vigil/internal/model"
)

// Per-stream status ranges, half-open.
const (
	frameRateBase       = 25
	frameRateSpan       = 10
	processedFramesBase = 5000
	processedFramesSpan = 1000
	streamInferenceBase = 20
	streamInferenceSpan = 50
)

// StreamStats draws the live status shown next to each stream.
type StreamStats struct {
	mu  sync.Mutex
	rnd Rand
}

// NewStreamStats creates a generator drawing from rnd.
func NewStreamStats(rnd Rand) *StreamStats {
	return &StreamStats{rnd: rnd}
}

// Measure returns fresh metrics for every active stream. Streams not in
// activeIDs get nothing and read as zero.
func (g *StreamStats) Measure(activeIDs []string, now time.Time) map[string]model.StreamMetrics {
	out := make(map[string]model.StreamMetrics, len(activeIDs))
	if len(activeIDs) == 0 {
		return out
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range activeIDs {
		out[id] = model.StreamMetrics{
			FrameRate:       frameRateBase + g.rnd.IntN(frameRateSpan),
			ProcessedFrames: int64(processedFramesBase + g.rnd.IntN(processedFramesSpan)),
			InferenceTimeMs: streamInferenceBase + g.rnd.IntN(streamInferenceSpan),
			UpdatedAt:       now,
		}
	}
	return out
}
