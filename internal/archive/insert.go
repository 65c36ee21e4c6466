package archive

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/vigil/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can wait for the
// flush worker.
const DefaultFlushQueueSize = 64

// Record is one archived item: either a log entry or a snapshot.
type Record struct {
	Session  string
	Entry    *model.LogEntry
	Snapshot *model.MetricsSnapshot
}

// Writer persists record batches.
type Writer interface {
	InsertBatch(ctx context.Context, records []Record) error
}

// InsertBufferConfig holds tunables for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
	Logger         *zap.Logger
}

// InsertBuffer batches records and writes them on a background worker so
// session ticks never wait on DuckDB.
type InsertBuffer struct {
	writer        Writer
	logger        *zap.Logger
	mu            sync.Mutex
	pending       []Record
	flushChan     chan []Record
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	stopOnce      sync.Once

	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64
}

// NewInsertBuffer starts a buffer flushing into writer.
func NewInsertBuffer(writer Writer, conf InsertBufferConfig) *InsertBuffer {
	if conf.BatchSize <= 0 {
		conf.BatchSize = 500
	}
	if conf.FlushInterval <= 0 {
		conf.FlushInterval = time.Second
	}
	if conf.FlushQueueSize <= 0 {
		conf.FlushQueueSize = DefaultFlushQueueSize
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}

	b := &InsertBuffer{
		writer:        writer,
		logger:        conf.Logger,
		pending:       make([]Record, 0, conf.BatchSize),
		flushChan:     make(chan []Record, conf.FlushQueueSize),
		maxBatch:      conf.BatchSize,
		flushInterval: conf.FlushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending()
			return
		}
	}
}

// logBackpressure warns at most once every 10 seconds.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		b.logger.Warn("archive backpressure: flushing inline", zap.Int64("inline_flushes", count))
	}
}

func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]Record, 0, b.maxBatch)
	b.mu.Unlock()

	b.enqueue(batch)
}

// enqueue hands batch to the worker, or writes it inline when the queue is full.
func (b *InsertBuffer) enqueue(batch []Record) {
	select {
	case b.flushChan <- batch:
	default:
		b.logBackpressure()
		b.flush(batch)
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		b.flush(batch)
	}
}

func (b *InsertBuffer) flush(batch []Record) {
	if err := b.writer.InsertBatch(context.Background(), batch); err != nil {
		b.logger.Error("archive flush failed", zap.Int("records", len(batch)), zap.Error(err))
	}
}

// Add queues a record. It never blocks on IO.
func (b *InsertBuffer) Add(r Record) {
	select {
	case <-b.done:
		return
	default:
	}

	b.mu.Lock()
	b.pending = append(b.pending, r)
	var batch []Record
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]Record, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch)
	}
}

// OnEntries archives an ingested batch.
func (b *InsertBuffer) OnEntries(session string, entries []model.LogEntry, _ int) {
	for i := range entries {
		b.Add(Record{Session: session, Entry: &entries[i]})
	}
}

// OnSnapshot archives a snapshot.
func (b *InsertBuffer) OnSnapshot(session string, snap model.MetricsSnapshot) {
	b.Add(Record{Session: session, Snapshot: &snap})
}

// Stop flushes what is pending and waits for the writes to finish.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.tickWg.Wait()
		close(b.flushChan)
		b.wg.Wait()
	})
}

// InsertBatch writes records in one transaction. If the batch fails it is
// retried record by record and failures are dropped.
func (s *Store) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertTx(ctx, records); err == nil {
		return nil
	}

	var failed int
	var lastErr error
	for _, r := range records {
		if err := s.insertTx(ctx, []Record{r}); err != nil {
			failed++
			lastErr = err
		}
	}
	if failed > 0 {
		return fmt.Errorf("archive: %d/%d records dropped: %w", failed, len(records), lastErr)
	}
	return nil
}

func (s *Store) insertTx(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	logStmt, err := tx.PrepareContext(ctx, `INSERT INTO frame_logs
		(id, session, stream_id, frame_number, ts, inference_time_ms, confidence, detections, severity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer logStmt.Close()

	snapStmt, err := tx.PrepareContext(ctx, `INSERT INTO metric_snapshots
		(session, sampled_at, cpu_percent, memory_percent, disk_percent, temperature_celsius,
		 network_bandwidth_mbps, total_frames_processed, avg_inference_time_ms, active_streams)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer snapStmt.Close()

	for _, r := range records {
		switch {
		case r.Entry != nil:
			e := r.Entry
			if _, err := logStmt.ExecContext(ctx,
				e.ID, r.Session, e.StreamID, e.FrameNumber, e.Timestamp.UTC(),
				e.InferenceTimeMs, e.Confidence, e.DetectionsCount, string(e.Severity),
			); err != nil {
				return fmt.Errorf("frame log insert: %w", err)
			}
		case r.Snapshot != nil:
			m := r.Snapshot
			if _, err := snapStmt.ExecContext(ctx,
				r.Session, m.SampledAt.UTC(), m.CPUPercent, m.MemoryPercent, m.DiskPercent,
				m.TemperatureCelsius, m.NetworkBandwidthMBps, m.TotalFramesProcessed,
				m.AvgInferenceTimeMs, m.ActiveStreams,
			); err != nil {
				return fmt.Errorf("snapshot insert: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
