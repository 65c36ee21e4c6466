package sampler

import (
	"fmt"
	"sync"
	"time"

	"github.com/tinytelemetry/vigil/internal/model"
)

// Rand is the randomness the sampler draws from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// FramesMode selects how TotalFramesProcessed evolves between samples.
type FramesMode string

const (
	// FramesCumulative keeps a running counter fed by per-stream frame rates.
	FramesCumulative FramesMode = "cumulative"
	// FramesResample redraws the total each tick, matching the reference dashboard.
	FramesResample FramesMode = "resample"
)

// ParseFramesMode validates a configured frames mode.
func ParseFramesMode(s string) (FramesMode, error) {
	switch FramesMode(s) {
	case FramesCumulative, FramesResample:
		return FramesMode(s), nil
	case "":
		return FramesCumulative, nil
	}
	return "", fmt.Errorf("sampler: unknown frames mode %q", s)
}

// Per-stream load coefficients.
const (
	cpuPerStream       = 15
	cpuJitter          = 20
	cpuCeiling         = 95
	memPerStream       = 20
	memJitter          = 15
	memBase            = 25
	memCeiling         = 90
	diskBase           = 45
	diskJitter         = 10
	tempBase           = 45
	tempJitter         = 20
	tempPerStream      = 3
	netPerStream       = 2.5
	netJitter          = 2
	framesBase         = 15000
	framesJitter       = 1000
	inferenceBase      = 25
	inferenceJitter    = 30
	inferencePerStream = 5
	fpsBase            = 25
	fpsJitter          = 10
)

// Config holds sampler settings.
type Config struct {
	FramesMode FramesMode
	// Interval seeds the elapsed time for the first cumulative sample.
	Interval time.Duration
}

// Sampler derives a system metrics snapshot from the active stream count.
// It owns no state other than the cumulative frame counter.
type Sampler struct {
	rnd      Rand
	mode     FramesMode
	interval time.Duration

	mu         sync.Mutex
	frames     int64
	lastSample time.Time
}

// New creates a sampler drawing from rnd.
func New(rnd Rand, cfg Config) *Sampler {
	mode := cfg.FramesMode
	if mode == "" {
		mode = FramesCumulative
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = model.DefaultSampleInterval
	}
	return &Sampler{rnd: rnd, mode: mode, interval: interval}
}

// Mode returns the configured frames mode.
func (s *Sampler) Mode() FramesMode { return s.mode }

// Sample produces one snapshot for activeStreamCount streams.
// Every draw is independent per call.
func (s *Sampler) Sample(activeStreamCount int, now time.Time) model.MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := max(activeStreamCount, 0)
	base := n * cpuPerStream

	snap := model.MetricsSnapshot{
		CPUPercent:           float64(min(cpuCeiling, base+s.rnd.IntN(cpuJitter))),
		MemoryPercent:        float64(min(memCeiling, n*memPerStream+s.rnd.IntN(memJitter)+memBase)),
		DiskPercent:          float64(diskBase + s.rnd.IntN(diskJitter)),
		TemperatureCelsius:   float64(tempBase + s.rnd.IntN(tempJitter) + n*tempPerStream),
		NetworkBandwidthMBps: float64(n)*netPerStream + s.rnd.Float64()*netJitter,
		AvgInferenceTimeMs:   float64(inferenceBase + s.rnd.IntN(inferenceJitter) + n*inferencePerStream),
		ActiveStreams:        n,
		SampledAt:            now,
	}
	snap.TotalFramesProcessed = s.nextFrames(n, now)
	return snap
}

func (s *Sampler) nextFrames(n int, now time.Time) int64 {
	if s.mode == FramesResample {
		return int64(s.rnd.IntN(framesJitter) + framesBase)
	}

	elapsed := s.interval
	if !s.lastSample.IsZero() {
		elapsed = now.Sub(s.lastSample)
	}
	s.lastSample = now
	if elapsed < 0 {
		elapsed = 0
	}

	for i := 0; i < n; i++ {
		fps := fpsBase + s.rnd.IntN(fpsJitter)
		s.frames += int64(float64(fps) * elapsed.Seconds())
	}
	return s.frames
}

// Reset zeroes the cumulative frame counter.
func (s *Sampler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = 0
	s.lastSample = time.Time{}
}
