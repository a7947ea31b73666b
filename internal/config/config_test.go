package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Validates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() should validate: %v", err)
	}
	if cfg.Simulation.TickRate != 60 {
		t.Errorf("expected default tick rate 60, got %d", cfg.Simulation.TickRate)
	}
	if cfg.Transport.Kind != TransportInProcess {
		t.Errorf("expected default transport %q, got %q", TransportInProcess, cfg.Transport.Kind)
	}
	if cfg.Journal.Path != "" || cfg.Metrics.Addr != "" {
		t.Error("journal and metrics should be disabled by default")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv("GAM3DU_TEST_JOURNAL", "/tmp/journal.db")

	path := filepath.Join(t.TempDir(), "gam3du.yaml")
	data := `
simulation:
  tick_rate: 120
  plane_width: 8
transport:
  kind: ring
  ring_capacity: 4096
dispatch:
  pending_timeout: 30s
journal:
  path: ${GAM3DU_TEST_JOURNAL}
metrics:
  addr: ":9090"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulation.TickRate != 120 {
		t.Errorf("tick_rate = %d, want 120", cfg.Simulation.TickRate)
	}
	if cfg.Simulation.PlaneWidth != 8 || cfg.Simulation.PlaneHeight != 16 {
		t.Errorf("plane = %dx%d, want 8x16", cfg.Simulation.PlaneWidth, cfg.Simulation.PlaneHeight)
	}
	if cfg.Transport.Kind != TransportRing || cfg.Transport.RingCapacity != 4096 {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	if cfg.Dispatch.PendingTimeout != 30*time.Second {
		t.Errorf("pending_timeout = %s, want 30s", cfg.Dispatch.PendingTimeout)
	}
	if cfg.Journal.Path != "/tmp/journal.db" {
		t.Errorf("journal.path = %q, want env expansion", cfg.Journal.Path)
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("metrics.addr = %q", cfg.Metrics.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown key", "simulation:\n  tickrate: 1\n", "field tickrate not found"},
		{"bad yaml", "simulation: [", "parse config yaml"},
		{"tick rate", "simulation:\n  tick_rate: 0\n", "simulation.tick_rate must be >= 1"},
		{"plane", "simulation:\n  plane_height: -1\n", "plane_width and plane_height"},
		{"transport kind", "transport:\n  kind: tcp\n", `transport.kind must be "inproc" or "ring", got "tcp"`},
		{"ring capacity", "transport:\n  kind: ring\n  ring_capacity: 8\n", "transport.ring_capacity must be >= 64"},
		{"small ring ignored for inproc", "transport:\n  ring_capacity: 8\n", ""},
		{"negative timeout", "dispatch:\n  pending_timeout: -1s\n", "dispatch.pending_timeout must be >= 0"},
		{"poll interval", "script:\n  poll_interval: 0s\n", "script.poll_interval must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
