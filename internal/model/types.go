package model

import (
	"time"

	"github.com/tinytelemetry/vigil/internal/severity"
)

// TimestampLayout is the ISO-8601 form used for display and CSV export.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// LogEntry is one classified frame-processing record.
// Severity is fixed at creation and never recomputed.
type LogEntry struct {
	ID              string         `json:"id"`
	StreamID        string         `json:"streamId"`
	FrameNumber     int            `json:"frameNumber"`
	Timestamp       time.Time      `json:"timestamp"`
	InferenceTimeMs int            `json:"inferenceTimeMs"`
	Confidence      int            `json:"confidence"`
	DetectionsCount int            `json:"detectionsCount"`
	Severity        severity.Level `json:"severity"`
}

// FormatTimestamp renders the entry timestamp in UTC ISO-8601 form.
func (e LogEntry) FormatTimestamp() string {
	return e.Timestamp.UTC().Format(TimestampLayout)
}

// MetricsSnapshot is an immutable set of gauge values captured at one sampling instant.
type MetricsSnapshot struct {
	CPUPercent           float64   `json:"cpuPercent"`
	MemoryPercent        float64   `json:"memoryPercent"`
	DiskPercent          float64   `json:"diskPercent"`
	TemperatureCelsius   float64   `json:"temperatureCelsius"`
	NetworkBandwidthMBps float64   `json:"networkBandwidthMBps"`
	TotalFramesProcessed int64     `json:"totalFramesProcessed"`
	AvgInferenceTimeMs   float64   `json:"avgInferenceTimeMs"`
	ActiveStreams        int       `json:"activeStreams"`
	SampledAt            time.Time `json:"sampledAt"`
}

// TemperatureGauge scales the temperature for progress-bar display. It is not stored.
func (s MetricsSnapshot) TemperatureGauge() float64 {
	return s.TemperatureCelsius * 1.2
}

// StreamMetrics is the live status of one stream. It is all zero while the
// stream is inactive and until its first refresh after activation.
type StreamMetrics struct {
	FrameRate       int       `json:"frameRate"`
	ProcessedFrames int64     `json:"processedFrames"`
	InferenceTimeMs int       `json:"inferenceTimeMs"`
	UpdatedAt       time.Time `json:"updatedAt,omitzero"`
}

// StreamState is one registry entry as exposed to read surfaces.
type StreamState struct {
	ID      string        `json:"id"`
	Active  bool          `json:"active"`
	Metrics StreamMetrics `json:"metrics"`
}

// SeverityCount is an aggregated count for one severity tier.
type SeverityCount struct {
	Severity severity.Level `json:"severity"`
	Count    int64          `json:"count"`
}
