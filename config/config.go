package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputConfig selects the MIDI output
type OutputConfig struct {
	Port string `yaml:"port"` // substring of the port name; empty = dry run
}

// SchedulerConfig tunes the track schedulers
type SchedulerConfig struct {
	LookAheadMs int `yaml:"look_ahead_ms"`
	QueueSize   int `yaml:"queue_size"`
}

// APIConfig configures the instruction listener
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"` // debug log used while the monitor runs
}

// UIConfig configures the monitor
type UIConfig struct {
	Palette string `yaml:"palette,omitempty"` // GIMP .gpl file; empty = built-in
}

// Config is the main configuration structure
type Config struct {
	Output    OutputConfig    `yaml:"output"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	API       APIConfig       `yaml:"api"`
	Log       LogConfig       `yaml:"log"`
	UI        UIConfig        `yaml:"ui"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			LookAheadMs: 200,
			QueueSize:   256,
		},
		API: APIConfig{
			Addr: ":27713",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LookAhead returns the scheduling margin as a duration in ms
func (c *Config) LookAhead() int64 {
	return int64(c.Scheduler.LookAheadMs)
}

// PortScanTimeout is how long to wait for the MIDI driver to list ports
func (c *Config) PortScanTimeout() time.Duration {
	return 3 * time.Second
}

// Validate checks values that would break the scheduler
func (c *Config) Validate() error {
	if c.Scheduler.LookAheadMs < 0 {
		return fmt.Errorf("scheduler.look_ahead_ms must not be negative, got %d", c.Scheduler.LookAheadMs)
	}
	if c.Scheduler.QueueSize < 1 {
		return fmt.Errorf("scheduler.queue_size must be at least 1, got %d", c.Scheduler.QueueSize)
	}
	if c.API.Addr == "" {
		return errors.New("api.addr must not be empty")
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-perform"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path (ConfigPath() if empty), or returns defaults
// if the file does not exist. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to path (ConfigPath() if empty)
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := c.Marshal()
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Marshal returns the config as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
