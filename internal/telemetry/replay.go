package telemetry

import (
	"strconv"
	"sync"
	"time"

	"github.com/tinytelemetry/vigil/internal/model"
)

// Replay serves queued readings, one batch per tick. Tests script exact
// sequences with it; an adapter for a real inference pipeline can Push each
// result batch as it arrives.
type Replay struct {
	mu      sync.Mutex
	batches [][]Reading
	loop    bool
	next    int
	seq     uint64
}

// NewReplay queues batches in order.
func NewReplay(batches ...[]Reading) *Replay {
	return &Replay{batches: batches}
}

// NewLoopingReplay restarts from the first batch once all are served.
func NewLoopingReplay(batches ...[]Reading) *Replay {
	return &Replay{batches: batches, loop: true}
}

// Push appends one batch.
func (r *Replay) Push(batch ...Reading) {
	r.mu.Lock()
	r.batches = append(r.batches, batch)
	r.mu.Unlock()
}

// Pending returns how many batches have not been served yet.
func (r *Replay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches) - r.next
}

// Candidates consumes the next batch. Readings for inactive or repeated
// streams are dropped. An empty active set consumes nothing.
func (r *Replay) Candidates(activeIDs []string, now time.Time) []model.LogEntry {
	if len(activeIDs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.batches) {
		if !r.loop || len(r.batches) == 0 {
			return nil
		}
		r.next = 0
	}
	batch := r.batches[r.next]
	r.next++

	allowed := make(map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		allowed[id] = true
	}
	out := make([]model.LogEntry, 0, len(activeIDs))
	for _, reading := range batch {
		if !allowed[reading.StreamID] {
			continue
		}
		allowed[reading.StreamID] = false
		r.seq++
		out = append(out, NewEntry(reading, now, "r"+strconv.FormatUint(r.seq, 10)))
	}
	return out
}

var _ Source = (*Replay)(nil)
