package telemetry

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	providers, shutdown, err := Init(context.Background(), Config{OTLPEndpoint: "", ServiceName: ""})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if providers.MeterProvider == nil {
		t.Fatal("expected a meter provider")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestMeterMetricsRecordsAgainstNoopProvider(t *testing.T) {
	providers, shutdown, err := Init(context.Background(), Config{OTLPEndpoint: "", ServiceName: ""})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	metrics := NewMeterMetrics(providers.MeterProvider)
	labels := map[string]string{"scheduler": "s1"}
	metrics.IncCounter("scheduler_frames_total", 1, labels)
	metrics.ObserveHistogram("scheduler_frame_seconds", 0.016, labels)
	metrics.SetGauge("scheduler_output_port_depth", 3, labels)

	// Instruments are cached after first use.
	metrics.IncCounter("scheduler_frames_total", 1, labels)
	if len(metrics.counters) != 1 {
		t.Fatalf("expected one cached counter, got %d", len(metrics.counters))
	}
}

func TestParseEndpoint(t *testing.T) {
	host, insecure, err := parseEndpoint("http://collector:4318")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if host != "collector:4318" || !insecure {
		t.Fatalf("unexpected result %s insecure=%v", host, insecure)
	}

	host, insecure, err = parseEndpoint("https://otlp.example.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if host != "otlp.example.com" || insecure {
		t.Fatalf("unexpected result %s insecure=%v", host, insecure)
	}
}
