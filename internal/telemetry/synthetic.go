package telemetry

import (
	"encoding/binary"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/vigil/internal/model"
)

// Rand is the randomness used by the synthetic generator.
type Rand interface {
	IntN(n int) int
}

// Draw ranges for synthetic readings, half-open.
const (
	confidenceSpan  = 100
	detectionsSpan  = 8
	inferenceBaseMs = 20
	inferenceSpanMs = 50
	frameBase       = 5000
	frameSpan       = 10000
)

// Synthetic generates uniformly random readings for every active stream.
type Synthetic struct {
	mu      sync.Mutex
	rnd     Rand
	entropy io.Reader // nil uses crypto-random UUIDs
}

// NewSynthetic creates a generator drawing from rnd.
func NewSynthetic(rnd Rand) *Synthetic {
	return &Synthetic{rnd: rnd}
}

// NewSeeded creates a fully deterministic generator. The same ChaCha8 stream
// drives readings and id salts.
func NewSeeded(seed uint64) *Synthetic {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	return &Synthetic{rnd: rand.New(src), entropy: src}
}

// Candidates returns one reading per active stream, in the given order.
func (s *Synthetic) Candidates(activeIDs []string, now time.Time) []model.LogEntry {
	if len(activeIDs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.LogEntry, 0, len(activeIDs))
	for _, id := range activeIDs {
		r := Reading{
			StreamID:        id,
			FrameNumber:     frameBase + s.rnd.IntN(frameSpan),
			Confidence:      s.rnd.IntN(confidenceSpan),
			DetectionsCount: s.rnd.IntN(detectionsSpan),
			InferenceTimeMs: inferenceBaseMs + s.rnd.IntN(inferenceSpanMs),
		}
		out = append(out, NewEntry(r, now, s.salt()))
	}
	return out
}

func (s *Synthetic) salt() string {
	if s.entropy == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(s.entropy)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
