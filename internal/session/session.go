package session

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tinytelemetry/vigil/internal/eventlog"
	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/registry"
	"github.com/tinytelemetry/vigil/internal/sampler"
	"github.com/tinytelemetry/vigil/internal/schedule"
	"github.com/tinytelemetry/vigil/internal/severity"
	"github.com/tinytelemetry/vigil/internal/telemetry"
)

// Observer receives every ingested batch and every snapshot. Calls happen on
// the tick goroutines and must not block.
type Observer interface {
	OnEntries(session string, entries []model.LogEntry, evicted int)
	OnSnapshot(session string, snap model.MetricsSnapshot)
}

// Config holds session settings. Zero values fall back to model defaults.
type Config struct {
	Name           string
	Streams        []string
	LogCapacity    int
	IngestInterval time.Duration
	SampleInterval time.Duration
	// StreamInterval paces the per-stream status refresh.
	StreamInterval time.Duration
	FramesMode     sampler.FramesMode
	// Seed makes generation deterministic when non-zero.
	Seed uint64
	// AutoStart activates every stream at construction. Otherwise all
	// streams start inactive.
	AutoStart bool
}

// Option customizes collaborators.
type Option func(*Session)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithSource replaces the synthetic telemetry source.
func WithSource(src telemetry.Source) Option {
	return func(s *Session) { s.source = src }
}

// WithStreamStats replaces the per-stream status generator.
func WithStreamStats(g *telemetry.StreamStats) Option {
	return func(s *Session) { s.stats = g }
}

// WithClock injects the clock driving the tick scheduler.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithSamplerRand replaces the sampler's randomness.
func WithSamplerRand(r sampler.Rand) Option {
	return func(s *Session) { s.samplerRand = r }
}

// Session owns the state of one dashboard: stream registry, event log and
// sampler. Sessions share nothing, so several can run side by side.
type Session struct {
	name   string
	cfg    Config
	logger *zap.Logger
	clock  clockwork.Clock

	registry    *registry.Registry
	log         *eventlog.Buffer
	sampler     *sampler.Sampler
	samplerRand sampler.Rand
	source      telemetry.Source
	stats       *telemetry.StreamStats
	sched       *schedule.Scheduler
	observers   []Observer

	mu        sync.RWMutex
	latest    model.MetricsSnapshot
	hasLatest bool
	mode      model.Mode
	perStream map[string]model.StreamMetrics

	runMu   sync.Mutex
	running bool
}

// New builds a session. The stream set is fixed for its lifetime.
func New(cfg Config, opts ...Option) (*Session, error) {
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if len(cfg.Streams) == 0 {
		cfg.Streams = model.DefaultStreams
	}
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = model.DefaultLogCapacity
	}
	if cfg.IngestInterval <= 0 {
		cfg.IngestInterval = model.DefaultIngestInterval
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = model.DefaultSampleInterval
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = model.DefaultStreamInterval
	}

	reg, err := registry.New(cfg.Streams)
	if err != nil {
		return nil, err
	}
	if cfg.AutoStart {
		reg.SetAll(true)
	}

	s := &Session{
		name:     cfg.Name,
		cfg:      cfg,
		registry: reg,
		log:      eventlog.New(eventlog.WithCapacity(cfg.LogCapacity)),
		mode:     model.ModeTraffic,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.String("session", s.name))
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.samplerRand == nil {
		s.samplerRand = newRand(cfg.Seed)
	}
	if s.source == nil {
		if cfg.Seed != 0 {
			s.source = telemetry.NewSeeded(cfg.Seed)
		} else {
			s.source = telemetry.NewSynthetic(newRand(0))
		}
	}
	if s.stats == nil {
		var seed uint64
		if cfg.Seed != 0 {
			seed = cfg.Seed ^ 0x9e3779b97f4a7c15
		}
		s.stats = telemetry.NewStreamStats(newRand(seed))
	}
	s.sampler = sampler.New(s.samplerRand, sampler.Config{
		FramesMode: cfg.FramesMode,
		Interval:   cfg.SampleInterval,
	})

	s.sched = schedule.New(s.clock, s.logger)
	if err := s.sched.Every("ingest", cfg.IngestInterval, s.IngestTick); err != nil {
		return nil, err
	}
	if err := s.sched.Every("sample", cfg.SampleInterval, s.SampleTick); err != nil {
		return nil, err
	}
	if err := s.sched.Every("streams", cfg.StreamInterval, s.StreamTick); err != nil {
		return nil, err
	}
	return s, nil
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Config returns the effective configuration.
func (s *Session) Config() Config { return s.cfg }

// Run starts the tick timers and blocks until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return fmt.Errorf("session %q: already running", s.name)
	}
	s.running = true
	s.runMu.Unlock()

	if err := s.sched.Start(ctx); err != nil {
		return err
	}
	s.logger.Info("session started",
		zap.Strings("streams", s.registry.IDs()),
		zap.Duration("ingest_interval", s.cfg.IngestInterval),
		zap.Duration("sample_interval", s.cfg.SampleInterval),
		zap.Duration("stream_interval", s.cfg.StreamInterval),
		zap.String("frames_mode", string(s.sampler.Mode())),
	)

	<-ctx.Done()
	s.sched.Stop()
	s.logger.Info("session stopped")
	return nil
}

// IngestTick polls the telemetry source for the active streams and pushes
// the candidates into the event log.
func (s *Session) IngestTick(now time.Time) {
	active := s.registry.ActiveIDs()
	if len(active) == 0 {
		return
	}
	candidates := admit(s.source.Candidates(active, now), active)
	if len(candidates) == 0 {
		return
	}
	evicted := s.log.Ingest(candidates)
	for _, o := range s.observers {
		o.OnEntries(s.name, append([]model.LogEntry(nil), candidates...), evicted)
	}
}

// admit keeps at most one candidate per active stream, in source order.
func admit(candidates []model.LogEntry, active []string) []model.LogEntry {
	allowed := make(map[string]bool, len(active))
	for _, id := range active {
		allowed[id] = true
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		if allowed[c.StreamID] {
			out = append(out, c)
			allowed[c.StreamID] = false
		}
	}
	return out
}

// SampleTick derives one metrics snapshot from the active stream count.
func (s *Session) SampleTick(now time.Time) {
	snap := s.sampler.Sample(s.registry.ActiveCount(), now)

	s.mu.Lock()
	s.latest = snap
	s.hasLatest = true
	s.mu.Unlock()

	for _, o := range s.observers {
		o.OnSnapshot(s.name, snap)
	}
}

// StreamTick refreshes the status of every active stream. Inactive streams
// lose whatever they had.
func (s *Session) StreamTick(now time.Time) {
	fresh := s.stats.Measure(s.registry.ActiveIDs(), now)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range fresh {
		if on, _ := s.registry.IsActive(id); !on {
			delete(fresh, id)
		}
	}
	s.perStream = fresh
}

// dropInactive resets the status of streams that were just stopped, so a
// restarted stream reads zero until its next refresh.
func (s *Session) dropInactive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.perStream {
		if on, _ := s.registry.IsActive(id); !on {
			delete(s.perStream, id)
		}
	}
}

// Toggle flips one stream.
func (s *Session) Toggle(id string) error {
	if err := s.registry.Toggle(id); err != nil {
		return err
	}
	s.dropInactive()
	on, _ := s.registry.IsActive(id)
	s.logger.Info("stream toggled", zap.String("stream", id), zap.Bool("active", on))
	return nil
}

// SetStream sets one stream's flag.
func (s *Session) SetStream(id string, active bool) error {
	if err := s.registry.Set(id, active); err != nil {
		return err
	}
	s.dropInactive()
	s.logger.Info("stream set", zap.String("stream", id), zap.Bool("active", active))
	return nil
}

// SetAll starts or stops every stream.
func (s *Session) SetAll(active bool) {
	s.registry.SetAll(active)
	s.dropInactive()
	s.logger.Info("all streams set", zap.Bool("active", active))
}

// ToggleAll stops every stream when all are running, otherwise starts them all.
func (s *Session) ToggleAll() bool {
	next := !s.registry.AllActive()
	s.SetAll(next)
	return next
}

// Entries returns the buffered entries passing filter, most recent first.
func (s *Session) Entries(filter severity.Filter) []model.LogEntry {
	return s.log.Filter(filter)
}

// Snapshot returns the latest metrics snapshot, if any has been sampled.
func (s *Session) Snapshot() (model.MetricsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// ActiveCount returns the number of active streams.
func (s *Session) ActiveCount() int { return s.registry.ActiveCount() }

// ActiveIDs returns active stream ids in registration order.
func (s *Session) ActiveIDs() []string { return s.registry.ActiveIDs() }

// Streams lists every stream with its flag and live status.
func (s *Session) Streams() []model.StreamState {
	states := s.registry.States()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range states {
		if states[i].Active {
			states[i].Metrics = s.perStream[states[i].ID]
		}
	}
	return states
}

// ExportCSV serializes the whole unfiltered event log.
func (s *Session) ExportCSV() string { return s.log.ExportCSV() }

// WriteCSV streams the same export to w.
func (s *Session) WriteCSV(w io.Writer) error { return s.log.WriteCSV(w) }

// Log exposes the event log for streaming exports.
func (s *Session) Log() *eventlog.Buffer { return s.log }

// ClearLog empties the event log.
func (s *Session) ClearLog() {
	s.log.Clear()
	s.logger.Info("event log cleared")
}

// Mode returns the monitoring mode.
func (s *Session) Mode() model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode changes the monitoring mode.
func (s *Session) SetMode(m model.Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
	s.logger.Info("monitoring mode changed", zap.String("mode", string(m)))
}

// ExportFileName names a CSV export taken at now.
func ExportFileName(now time.Time) string {
	return "frame-logs-" + now.UTC().Format("2006-01-02") + ".csv"
}

var _ model.Dashboard = (*Session)(nil)
