// Package config centralises runtime configuration for the calcflow engine
// and its drivers.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/calcflow/calcflow/internal/graph"
	"github.com/calcflow/calcflow/internal/telemetry"
)

// Environment identifies the runtime environment where calcflow operates.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

// Settings contains the calcflow configuration tree loaded from defaults and
// overrides.
type Settings struct {
	Environment  Environment
	FrameRate    int
	PortCapacity int
	Debug        bool
	Telemetry    telemetry.Config
}

// Default returns the default calcflow configuration.
func Default() Settings {
	return Settings{
		Environment:  EnvProd,
		FrameRate:    graph.DefaultFrameRate,
		PortCapacity: graph.DefaultPortCapacity,
		Debug:        false,
		Telemetry: telemetry.Config{
			OTLPEndpoint: "",
			ServiceName:  "calcflow-streamfilter",
		},
	}
}

// FromEnv loads configuration values from environment variables, overriding
// defaults.
func FromEnv() Settings {
	cfg := Default()
	if env := strings.TrimSpace(os.Getenv("CALCFLOW_ENV")); env != "" {
		cfg.Environment = Environment(strings.ToLower(env))
	}
	if v := strings.TrimSpace(os.Getenv("CALCFLOW_FRAME_RATE")); v != "" {
		if rate, err := strconv.Atoi(v); err == nil && rate > 0 {
			cfg.FrameRate = rate
		}
	}
	if v := strings.TrimSpace(os.Getenv("CALCFLOW_PORT_CAPACITY")); v != "" {
		if capacity, err := strconv.Atoi(v); err == nil && capacity > 0 {
			cfg.PortCapacity = capacity
		}
	}
	if v := strings.TrimSpace(os.Getenv("CALCFLOW_DEBUG")); v != "" {
		if debug, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = debug
		}
	}
	if v := strings.TrimSpace(os.Getenv("CALCFLOW_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("CALCFLOW_SERVICE_NAME")); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	return cfg
}

// Option mutates Settings when applied via Apply.
type Option func(*Settings)

// Apply applies the provided Option set to a copy of the base Settings.
func Apply(base Settings, opts ...Option) Settings {
	cfg := base
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithEnvironment configures the top-level environment.
func WithEnvironment(env Environment) Option {
	return func(s *Settings) {
		if env != "" {
			s.Environment = env
		}
	}
}

// WithFrameRate overrides the scheduler frame rate.
func WithFrameRate(rate int) Option {
	return func(s *Settings) {
		if rate > 0 {
			s.FrameRate = rate
		}
	}
}

// WithPortCapacity overrides the port queue bound.
func WithPortCapacity(capacity int) Option {
	return func(s *Settings) {
		if capacity > 0 {
			s.PortCapacity = capacity
		}
	}
}

// WithTelemetry overrides the metric export configuration.
func WithTelemetry(cfg telemetry.Config) Option {
	return func(s *Settings) {
		s.Telemetry = cfg
	}
}
