package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

// DefaultHistoryLimit caps history queries when no limit is given.
const DefaultHistoryLimit = 500

func clampLimit(limit int) int {
	if limit <= 0 || limit > 10*DefaultHistoryLimit {
		return DefaultHistoryLimit
	}
	return limit
}

// RecentEntries returns archived entries for session, most recent first.
// Entries sharing a timestamp keep their ingest order.
func (s *Store) RecentEntries(ctx context.Context, session string, filter severity.Filter, limit int) ([]model.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var where strings.Builder
	args := []any{session}
	where.WriteString("WHERE session = ?")
	if !filter.All() {
		where.WriteString(" AND severity = ?")
		args = append(args, string(filter.Level()))
	}
	args = append(args, clampLimit(limit))

	query := fmt.Sprintf(`SELECT id, stream_id, frame_number, ts, inference_time_ms, confidence, detections, severity
		FROM frame_logs %s
		ORDER BY ts DESC, seq ASC
		LIMIT ?`, where.String())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query frame logs: %w", err)
	}
	defer rows.Close()

	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var level string
		if err := rows.Scan(&e.ID, &e.StreamID, &e.FrameNumber, &e.Timestamp,
			&e.InferenceTimeMs, &e.Confidence, &e.DetectionsCount, &level); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		e.Severity = severity.Level(level)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SnapshotHistory returns archived snapshots for session, newest first.
func (s *Store) SnapshotHistory(ctx context.Context, session string, limit int) ([]model.MetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT sampled_at, cpu_percent, memory_percent, disk_percent,
			temperature_celsius, network_bandwidth_mbps, total_frames_processed,
			avg_inference_time_ms, active_streams
		FROM metric_snapshots
		WHERE session = ?
		ORDER BY sampled_at DESC
		LIMIT ?`, session, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.MetricsSnapshot
	for rows.Next() {
		var m model.MetricsSnapshot
		if err := rows.Scan(&m.SampledAt, &m.CPUPercent, &m.MemoryPercent, &m.DiskPercent,
			&m.TemperatureCelsius, &m.NetworkBandwidthMBps, &m.TotalFramesProcessed,
			&m.AvgInferenceTimeMs, &m.ActiveStreams); err != nil {
			return nil, err
		}
		m.SampledAt = m.SampledAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// SeverityCounts counts archived entries per tier. Every tier is present,
// in display order, even when its count is zero.
func (s *Store) SeverityCounts(ctx context.Context, session string) ([]model.SeverityCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM frame_logs WHERE session = ? GROUP BY severity`, session)
	if err != nil {
		return nil, fmt.Errorf("query severity counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[severity.Level]int64, len(severity.Levels))
	for rows.Next() {
		var level string
		var n int64
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		counts[severity.Level(level)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.SeverityCount, 0, len(severity.Levels))
	for _, l := range severity.Levels {
		out = append(out, model.SeverityCount{Severity: l, Count: counts[l]})
	}
	return out, nil
}

// EntryCount returns the number of archived entries across sessions.
func (s *Store) EntryCount(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM frame_logs").Scan(&n)
	return n, err
}

// DeleteBefore removes entries and snapshots older than cutoff and returns
// how many rows were deleted.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var total int64
	for _, q := range []string{
		"DELETE FROM frame_logs WHERE ts < ?",
		"DELETE FROM metric_snapshots WHERE sampled_at < ?",
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff.UTC())
		if err != nil {
			return total, fmt.Errorf("retention delete: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
