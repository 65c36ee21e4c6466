// Package promexport mirrors session telemetry into Prometheus collectors.
package promexport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tinytelemetry/vigil/internal/model"
)

const namespace = "vigil"

// Exporter is a session observer backed by its own registry.
type Exporter struct {
	registry *prometheus.Registry

	cpu         *prometheus.GaugeVec
	memory      *prometheus.GaugeVec
	disk        *prometheus.GaugeVec
	temperature *prometheus.GaugeVec
	network     *prometheus.GaugeVec
	frames      *prometheus.GaugeVec
	inference   *prometheus.GaugeVec
	active      *prometheus.GaugeVec
	entries     *prometheus.CounterVec
	evicted     *prometheus.CounterVec
}

func gauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"session"})
}

// New creates an exporter and registers its collectors plus the Go runtime
// collectors on a fresh registry.
func New() *Exporter {
	e := &Exporter{
		registry:    prometheus.NewRegistry(),
		cpu:         gauge("cpu_percent", "Sampled CPU usage percent."),
		memory:      gauge("memory_percent", "Sampled memory usage percent."),
		disk:        gauge("disk_percent", "Sampled disk usage percent."),
		temperature: gauge("temperature_celsius", "Sampled device temperature."),
		network:     gauge("network_bandwidth_mbps", "Sampled network bandwidth in MB/s."),
		frames:      gauge("frames_processed", "Total frames processed as last sampled."),
		inference:   gauge("avg_inference_ms", "Average inference time in milliseconds."),
		active:      gauge("active_streams", "Number of active streams."),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_logs_total",
			Help:      "Frame log entries ingested, by severity.",
		}, []string{"session", "severity"}),
		evicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_logs_evicted_total",
			Help:      "Frame log entries evicted from the bounded buffer.",
		}, []string{"session"}),
	}
	e.registry.MustRegister(
		e.cpu, e.memory, e.disk, e.temperature, e.network,
		e.frames, e.inference, e.active, e.entries, e.evicted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the text exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// OnEntries counts the batch by severity.
func (e *Exporter) OnEntries(session string, entries []model.LogEntry, evicted int) {
	for _, entry := range entries {
		e.entries.WithLabelValues(session, string(entry.Severity)).Inc()
	}
	if evicted > 0 {
		e.evicted.WithLabelValues(session).Add(float64(evicted))
	}
}

// OnSnapshot sets the gauges.
func (e *Exporter) OnSnapshot(session string, snap model.MetricsSnapshot) {
	e.cpu.WithLabelValues(session).Set(snap.CPUPercent)
	e.memory.WithLabelValues(session).Set(snap.MemoryPercent)
	e.disk.WithLabelValues(session).Set(snap.DiskPercent)
	e.temperature.WithLabelValues(session).Set(snap.TemperatureCelsius)
	e.network.WithLabelValues(session).Set(snap.NetworkBandwidthMBps)
	e.frames.WithLabelValues(session).Set(float64(snap.TotalFramesProcessed))
	e.inference.WithLabelValues(session).Set(snap.AvgInferenceTimeMs)
	e.active.WithLabelValues(session).Set(float64(snap.ActiveStreams))
}
