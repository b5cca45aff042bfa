package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("Load() = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "output:\n  port: IAC Driver\nscheduler:\n  look_ahead_ms: 350\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Output.Port != "IAC Driver" {
		t.Errorf("Output.Port = %q, want %q", cfg.Output.Port, "IAC Driver")
	}
	if cfg.LookAhead() != 350 {
		t.Errorf("LookAhead() = %d, want 350", cfg.LookAhead())
	}
	if cfg.Scheduler.QueueSize != 256 {
		t.Errorf("Scheduler.QueueSize = %d, want default 256", cfg.Scheduler.QueueSize)
	}
	if cfg.API.Addr != ":27713" {
		t.Errorf("API.Addr = %q, want default", cfg.API.Addr)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"negative look-ahead", "scheduler:\n  look_ahead_ms: -1\n"},
		{"zero queue", "scheduler:\n  queue_size: 0\n"},
		{"empty addr", "api:\n  addr: \"\"\n"},
		{"bad yaml", "scheduler: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Output.Port = "FluidSynth"
	cfg.Log.Level = "debug"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *cfg {
		t.Errorf("Load() = %+v, want %+v", got, cfg)
	}
}

func TestLoadPalettePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ui:\n  palette: /tmp/plasma.gpl\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UI.Palette != "/tmp/plasma.gpl" {
		t.Errorf("UI.Palette = %q", cfg.UI.Palette)
	}
}
