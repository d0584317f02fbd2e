package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	apimetric "go.opentelemetry.io/otel/metric"

	"github.com/calcflow/calcflow/internal/observability"
)

// MeterMetrics bridges the runtime's observability.Metrics interface onto an
// OpenTelemetry meter, so the scheduler stays decoupled from the otel API.
type MeterMetrics struct {
	meter      apimetric.Meter
	counters   map[string]apimetric.Float64Counter
	histograms map[string]apimetric.Float64Histogram
	gauges     map[string]apimetric.Float64Gauge
}

// NewMeterMetrics builds instruments lazily against the provider's meter.
func NewMeterMetrics(provider apimetric.MeterProvider) *MeterMetrics {
	m := new(MeterMetrics)
	m.meter = provider.Meter("github.com/calcflow/calcflow")
	m.counters = make(map[string]apimetric.Float64Counter)
	m.histograms = make(map[string]apimetric.Float64Histogram)
	m.gauges = make(map[string]apimetric.Float64Gauge)
	return m
}

// IncCounter adds value to the named counter.
func (m *MeterMetrics) IncCounter(name string, value float64, labels map[string]string) {
	counter, ok := m.counters[name]
	if !ok {
		created, err := m.meter.Float64Counter(name)
		if err != nil {
			observability.Log().Error("create counter", observability.Field{Key: "name", Value: name},
				observability.Field{Key: "error", Value: fmt.Sprint(err)})
			return
		}
		counter = created
		m.counters[name] = counter
	}
	counter.Add(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

// ObserveHistogram records value into the named histogram.
func (m *MeterMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	histogram, ok := m.histograms[name]
	if !ok {
		created, err := m.meter.Float64Histogram(name)
		if err != nil {
			observability.Log().Error("create histogram", observability.Field{Key: "name", Value: name},
				observability.Field{Key: "error", Value: fmt.Sprint(err)})
			return
		}
		histogram = created
		m.histograms[name] = histogram
	}
	histogram.Record(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

// SetGauge records the latest value for the named gauge.
func (m *MeterMetrics) SetGauge(name string, value float64, labels map[string]string) {
	gauge, ok := m.gauges[name]
	if !ok {
		created, err := m.meter.Float64Gauge(name)
		if err != nil {
			observability.Log().Error("create gauge", observability.Field{Key: "name", Value: name},
				observability.Field{Key: "error", Value: fmt.Sprint(err)})
			return
		}
		gauge = created
		m.gauges[name] = gauge
	}
	gauge.Record(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

func attrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}
