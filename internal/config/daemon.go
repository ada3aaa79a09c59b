package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DaemonConfig is the top-level YAML configuration for the aled daemon.
//
// This is intentionally user-facing and stable-ish. Keep defaults and
// validation centralized so the rest of the code can assume a well-formed
// config. Flags remain available for small overrides.
type DaemonConfig struct {
	// Listen is the monitor HTTP listen address.
	Listen string `yaml:"listen"`

	// ContentDir holds the contexts/rules/transitions YAML files.
	ContentDir string `yaml:"content_dir"`

	// TuningPath points at the JSON tuning file; empty uses engine defaults.
	TuningPath string `yaml:"tuning,omitempty"`

	Recording RecordingConfig `yaml:"recording"`

	Logging LoggingConfig `yaml:"logging"`
}

// RecordingConfig controls the session recorder.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	GameID  string `yaml:"game_id,omitempty"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultDaemonConfig returns the built-in daemon defaults.
func DefaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Listen:     ":8080",
		ContentDir: "content",
		Recording: RecordingConfig{
			Enabled: false,
			DBPath:  "sessions.db",
			GameID:  "dev",
		},
	}
}

// LoadDaemonConfig reads a YAML daemon config, layered over the defaults.
// Unknown fields are rejected so typos fail loudly at startup.
func LoadDaemonConfig(path string) (DaemonConfig, error) {
	if path == "" {
		return DaemonConfig{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return DaemonConfig{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultDaemonConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return DaemonConfig{}, fmt.Errorf("decode config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

// Validate checks the daemon configuration.
func (c *DaemonConfig) Validate() error {
	if c.Listen == "" {
		return errors.New("listen must not be empty")
	}
	if c.ContentDir == "" {
		return errors.New("content_dir must not be empty")
	}
	if c.Recording.Enabled && c.Recording.DBPath == "" {
		return errors.New("recording.db_path must not be empty when recording is enabled")
	}
	return nil
}
