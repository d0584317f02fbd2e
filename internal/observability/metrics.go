package observability

import (
	"sync"

	"github.com/goccy/go-json"
)

// Metrics provides counter, gauge, and histogram recording primitives.
type Metrics interface {
	IncCounter(name string, value float64, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

var defaultMetrics Metrics = noopMetrics{}

// SetMetrics overrides the global metrics implementation used by the runtime.
func SetMetrics(metrics Metrics) {
	if metrics == nil {
		defaultMetrics = noopMetrics{}
		return
	}
	defaultMetrics = metrics
}

// Telemetry returns the current global metrics collector.
func Telemetry() Metrics {
	return defaultMetrics
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, float64, map[string]string)       {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}
func (noopMetrics) SetGauge(string, float64, map[string]string)         {}

// SchedulerMetricsSnapshot captures scheduler-focused runtime counters.
type SchedulerMetricsSnapshot struct {
	FramesTotal    uint64             `json:"frames_total"`
	OverrunsTotal  uint64             `json:"overruns_total"`
	PacketsDropped map[string]uint64  `json:"packets_dropped"`
	PortDepth      map[string]int     `json:"port_depth"`
	FrameSeconds   map[string]float64 `json:"frame_seconds"`
}

// RuntimeMetrics accumulates scheduler metrics in-memory for periodic export.
// It implements Metrics so it can be installed globally.
type RuntimeMetrics struct {
	mu        sync.Mutex
	snapshot  SchedulerMetricsSnapshot
	histNames map[string]bool
}

// NewRuntimeMetrics constructs a metrics accumulator with empty maps.
func NewRuntimeMetrics() *RuntimeMetrics {
	metrics := new(RuntimeMetrics)
	metrics.snapshot = SchedulerMetricsSnapshot{
		FramesTotal:    0,
		OverrunsTotal:  0,
		PacketsDropped: make(map[string]uint64),
		PortDepth:      make(map[string]int),
		FrameSeconds:   make(map[string]float64),
	}
	metrics.histNames = make(map[string]bool)
	return metrics
}

// IncCounter accumulates named counters; frames and overruns are tracked as
// scalars, everything else per label key.
func (m *RuntimeMetrics) IncCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch name {
	case "scheduler_frames_total":
		m.snapshot.FramesTotal += uint64(value)
	case "scheduler_overruns_total":
		m.snapshot.OverrunsTotal += uint64(value)
	default:
		m.snapshot.PacketsDropped[metricKey(name, labels)] += uint64(value)
	}
}

// ObserveHistogram records the most recent observation per metric key.
func (m *RuntimeMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.FrameSeconds[metricKey(name, labels)] = value
}

// SetGauge tracks the latest gauge value per metric key.
func (m *RuntimeMetrics) SetGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.PortDepth[metricKey(name, labels)] = int(value)
}

// Snapshot copies the current metrics state for reporting.
func (m *RuntimeMetrics) Snapshot() SchedulerMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := SchedulerMetricsSnapshot{
		FramesTotal:    m.snapshot.FramesTotal,
		OverrunsTotal:  m.snapshot.OverrunsTotal,
		PacketsDropped: make(map[string]uint64, len(m.snapshot.PacketsDropped)),
		PortDepth:      make(map[string]int, len(m.snapshot.PortDepth)),
		FrameSeconds:   make(map[string]float64, len(m.snapshot.FrameSeconds)),
	}
	for k, v := range m.snapshot.PacketsDropped {
		out.PacketsDropped[k] = v
	}
	for k, v := range m.snapshot.PortDepth {
		out.PortDepth[k] = v
	}
	for k, v := range m.snapshot.FrameSeconds {
		out.FrameSeconds[k] = v
	}
	return out
}

// DumpJSON renders the current snapshot for logs and debug endpoints.
func (m *RuntimeMetrics) DumpJSON() ([]byte, error) {
	snapshot := m.Snapshot()
	return json.Marshal(snapshot)
}

func metricKey(name string, labels map[string]string) string {
	key := name
	if scheduler, ok := labels["scheduler"]; ok {
		key += "{" + scheduler + "}"
	}
	return key
}
