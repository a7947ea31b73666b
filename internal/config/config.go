// Package config loads the YAML settings for the run and repl commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gam3du/gam3du-sub000/internal/channel"
)

// Transport kinds.
const (
	TransportInProcess = "inproc"
	TransportRing      = "ring"
)

type SimulationConfig struct {
	// TickRate is the simulation frequency in Hz. Default: 60.
	TickRate int `yaml:"tick_rate"`
	// PlaneWidth and PlaneHeight size the robot's tile plane. Default: 16x16.
	PlaneWidth  int `yaml:"plane_width"`
	PlaneHeight int `yaml:"plane_height"`
}

type TransportConfig struct {
	// Kind selects the channel transport: "inproc" or "ring".
	Kind string `yaml:"kind"`
	// RingCapacity is the per-direction ring size in bytes (ring only).
	RingCapacity int `yaml:"ring_capacity"`
}

type DispatchConfig struct {
	// PendingTimeout fails a pending command that outlives it. Zero disables.
	PendingTimeout time.Duration `yaml:"pending_timeout"`
}

type ScriptConfig struct {
	// PollInterval is the blocking stubs' response polling backoff.
	PollInterval time.Duration `yaml:"poll_interval"`
}

type JournalConfig struct {
	// Path of the SQLite journal. Empty disables journaling.
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set (e.g. ":9090").
	Addr string `yaml:"addr"`
}

type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Transport  TransportConfig  `yaml:"transport"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Script     ScriptConfig     `yaml:"script"`
	Journal    JournalConfig    `yaml:"journal"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

func Default() Config {
	return Config{
		Simulation: SimulationConfig{
			TickRate:    60,
			PlaneWidth:  16,
			PlaneHeight: 16,
		},
		Transport: TransportConfig{
			Kind:         TransportInProcess,
			RingCapacity: channel.DefaultRingCapacity,
		},
		Script: ScriptConfig{
			PollInterval: channel.DefaultPollInterval,
		},
	}
}

// Load reads path over the defaults. An empty path returns Default().
// ${ENV_VAR} references are expanded before parsing.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse([]byte(os.ExpandEnv(string(b))))
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(data) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Simulation.TickRate <= 0 {
		return errors.New("simulation.tick_rate must be >= 1")
	}
	if c.Simulation.PlaneWidth <= 0 || c.Simulation.PlaneHeight <= 0 {
		return errors.New("simulation.plane_width and plane_height must be >= 1")
	}

	switch c.Transport.Kind {
	case TransportInProcess:
	case TransportRing:
		if c.Transport.RingCapacity < channel.MinRingCapacity {
			return fmt.Errorf("transport.ring_capacity must be >= %d", channel.MinRingCapacity)
		}
	default:
		return fmt.Errorf("transport.kind must be %q or %q, got %q", TransportInProcess, TransportRing, c.Transport.Kind)
	}

	if c.Dispatch.PendingTimeout < 0 {
		return errors.New("dispatch.pending_timeout must be >= 0")
	}
	if c.Script.PollInterval <= 0 {
		return errors.New("script.poll_interval must be > 0")
	}
	return nil
}
