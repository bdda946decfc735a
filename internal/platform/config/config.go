package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"

	"github.com/notur-urus/consensus-repo/internal/decay"
	"github.com/notur-urus/consensus-repo/internal/escalator"
)

type Config struct {
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	WindowDuration time.Duration `env:"WINDOW_DURATION" default:"300s"`

	DecayKind           string        `env:"DECAY_KIND" default:"exp"`
	DecayHalfLife       time.Duration `env:"DECAY_HALF_LIFE" default:"60s"`
	DecayLinearDuration time.Duration `env:"DECAY_LINEAR_DURATION" default:"300s"`
	DecayStep           time.Duration `env:"DECAY_STEP" default:"60s"`

	EscalatorKind  string  `env:"ESCALATOR_KIND" default:"linear"`
	EscalatorBase  float64 `env:"ESCALATOR_BASE" default:"0.51"`
	EscalatorSlope float64 `env:"ESCALATOR_SLOPE" default:"0"`
	EscalatorCap   float64 `env:"ESCALATOR_CAP" default:"1"`
	EscalatorFloor float64 `env:"ESCALATOR_FLOOR" default:"0"`

	MinWeight float64 `env:"MIN_WEIGHT" default:"0.1"`

	CastInterval time.Duration `env:"CAST_INTERVAL" default:"20ms"`
	MetricsAddr  string        `env:"METRICS_ADDR"`
}

// Load reads .env and the environment. It does not validate: command-line
// flags may still override values, so callers run Validate afterwards.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &cfg, nil
}

// Validate checks cfg after flags or env have been applied.
func Validate(cfg *Config) error {
	durations := []struct {
		name  string
		value time.Duration
	}{
		{"WINDOW_DURATION", cfg.WindowDuration},
		{"DECAY_HALF_LIFE", cfg.DecayHalfLife},
		{"DECAY_LINEAR_DURATION", cfg.DecayLinearDuration},
		{"DECAY_STEP", cfg.DecayStep},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}
	if cfg.CastInterval < 0 {
		return errors.New("CAST_INTERVAL must not be negative")
	}

	if _, err := decay.Parse(cfg.DecayKind); err != nil {
		return fmt.Errorf("DECAY_KIND %q: %w", cfg.DecayKind, err)
	}
	if _, err := escalator.Parse(cfg.EscalatorKind); err != nil {
		return fmt.Errorf("ESCALATOR_KIND %q: %w", cfg.EscalatorKind, err)
	}

	for name, v := range map[string]float64{
		"ESCALATOR_BASE":  cfg.EscalatorBase,
		"ESCALATOR_SLOPE": cfg.EscalatorSlope,
		"ESCALATOR_CAP":   cfg.EscalatorCap,
		"ESCALATOR_FLOOR": cfg.EscalatorFloor,
		"MIN_WEIGHT":      cfg.MinWeight,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	if cfg.EscalatorFloor < 0 || cfg.EscalatorCap > 1 || cfg.EscalatorFloor > cfg.EscalatorCap {
		return fmt.Errorf("escalator bounds must satisfy 0 <= ESCALATOR_FLOOR (%g) <= ESCALATOR_CAP (%g) <= 1",
			cfg.EscalatorFloor, cfg.EscalatorCap)
	}
	if cfg.MinWeight < 0 {
		return errors.New("MIN_WEIGHT must not be negative")
	}

	switch cfg.LogFormat {
	case "text", "json", "pretty":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of text, json, pretty, got %q", cfg.LogFormat)
	}

	return nil
}

// Decay returns the decay selection described by cfg.
// Validate guarantees DecayKind parses.
func (c *Config) Decay() decay.Config {
	kind, _ := decay.Parse(c.DecayKind)
	return decay.Config{
		Kind:           kind,
		HalfLife:       c.DecayHalfLife,
		LinearDuration: c.DecayLinearDuration,
		StepSize:       c.DecayStep,
	}
}

// Escalator returns the escalator selection described by cfg.
// Validate guarantees EscalatorKind parses.
func (c *Config) Escalator() escalator.Config {
	kind, _ := escalator.Parse(c.EscalatorKind)
	return escalator.Config{
		Kind:  kind,
		Base:  c.EscalatorBase,
		Slope: c.EscalatorSlope,
		Cap:   c.EscalatorCap,
		Floor: c.EscalatorFloor,
	}
}
