package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/stability"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// The schema matches the /api/ale/params endpoint so the same JSON can be
// used for both startup configuration and runtime updates. All fields are
// optional; the Get* methods and ToStability fall back to engine defaults.
type TuningConfig struct {
	// Stability: cooldown and hold
	GlobalCooldownMs *float64 `json:"global_cooldown_ms,omitempty"`
	DefaultHoldMs    *float64 `json:"default_hold_ms,omitempty"`

	// Stability: per-level inertia, index 0..4
	InertiaByLevel []float64 `json:"inertia_by_level,omitempty"`

	// Stability: decay toward baseline
	DecayEnabled         *bool    `json:"decay_enabled,omitempty"`
	DecayBaselineLevel   *int     `json:"decay_baseline_level,omitempty"`
	DecayRatePerSecond   *float64 `json:"decay_rate_per_second,omitempty"`
	DecayDelayMs         *float64 `json:"decay_delay_ms,omitempty"`
	DecayPauseDuringHold *bool    `json:"decay_pause_during_hold,omitempty"`

	// Stability: momentum smoothing
	MomentumEnabled         *bool    `json:"momentum_enabled,omitempty"`
	MomentumBufferSize      *int     `json:"momentum_buffer_size,omitempty"`
	MomentumChangeThreshold *float64 `json:"momentum_change_threshold,omitempty"`

	// Stability: trend prediction
	PredictionEnabled             *bool    `json:"prediction_enabled,omitempty"`
	PredictionHorizonMs           *float64 `json:"prediction_horizon_ms,omitempty"`
	PredictionConfidenceThreshold *float64 `json:"prediction_confidence_threshold,omitempty"`

	// Engine loop params
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "10ms"

	// Content params
	ContentDir *string `json:"content_dir,omitempty"`

	// Recorder params
	SessionDBPath    *string `json:"session_db_path,omitempty"`
	SnapshotInterval *string `json:"snapshot_interval,omitempty"` // duration string like "1s"
	RecordSessions   *bool   `json:"record_sessions,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/ale/engine/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.GlobalCooldownMs != nil && *c.GlobalCooldownMs < 0 {
		return fmt.Errorf("global_cooldown_ms must be non-negative, got %f", *c.GlobalCooldownMs)
	}
	if c.DefaultHoldMs != nil && *c.DefaultHoldMs < 0 {
		return fmt.Errorf("default_hold_ms must be non-negative, got %f", *c.DefaultHoldMs)
	}
	if len(c.InertiaByLevel) > 0 && len(c.InertiaByLevel) != ale.NumLevels {
		return fmt.Errorf("inertia_by_level must have %d entries, got %d", ale.NumLevels, len(c.InertiaByLevel))
	}
	for i, v := range c.InertiaByLevel {
		if v < 0 || v > 1 {
			return fmt.Errorf("inertia_by_level[%d] must be between 0 and 1, got %f", i, v)
		}
	}
	if c.DecayBaselineLevel != nil {
		if *c.DecayBaselineLevel < 0 || *c.DecayBaselineLevel >= ale.NumLevels {
			return fmt.Errorf("decay_baseline_level must be between 0 and %d, got %d", ale.NumLevels-1, *c.DecayBaselineLevel)
		}
	}
	if c.DecayRatePerSecond != nil && *c.DecayRatePerSecond < 0 {
		return fmt.Errorf("decay_rate_per_second must be non-negative, got %f", *c.DecayRatePerSecond)
	}
	if c.MomentumBufferSize != nil && *c.MomentumBufferSize < 1 {
		return fmt.Errorf("momentum_buffer_size must be positive, got %d", *c.MomentumBufferSize)
	}
	if c.PredictionConfidenceThreshold != nil {
		if v := *c.PredictionConfidenceThreshold; v < 0 || v > 1 {
			return fmt.Errorf("prediction_confidence_threshold must be between 0 and 1, got %f", v)
		}
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		if _, err := time.ParseDuration(*c.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
	}
	if c.SnapshotInterval != nil && *c.SnapshotInterval != "" {
		if _, err := time.ParseDuration(*c.SnapshotInterval); err != nil {
			return fmt.Errorf("invalid snapshot_interval '%s': %w", *c.SnapshotInterval, err)
		}
	}
	return nil
}

// ToStability materializes the stability portion of the config, applying
// engine defaults for unset fields.
func (c *TuningConfig) ToStability() stability.Config {
	cfg := stability.DefaultConfig()
	if c.GlobalCooldownMs != nil {
		cfg.GlobalCooldownMs = *c.GlobalCooldownMs
	}
	if c.DefaultHoldMs != nil {
		cfg.DefaultHoldMs = *c.DefaultHoldMs
	}
	if len(c.InertiaByLevel) == ale.NumLevels {
		copy(cfg.InertiaByLevel[:], c.InertiaByLevel)
	}
	if c.DecayEnabled != nil {
		cfg.Decay.Enabled = *c.DecayEnabled
	}
	if c.DecayBaselineLevel != nil {
		cfg.Decay.BaselineLevel = ale.LayerID(*c.DecayBaselineLevel)
	}
	if c.DecayRatePerSecond != nil {
		cfg.Decay.RatePerSecond = *c.DecayRatePerSecond
	}
	if c.DecayDelayMs != nil {
		cfg.Decay.DelayMs = *c.DecayDelayMs
	}
	if c.DecayPauseDuringHold != nil {
		cfg.Decay.PauseDuringHold = *c.DecayPauseDuringHold
	}
	if c.MomentumEnabled != nil {
		cfg.Momentum.Enabled = *c.MomentumEnabled
	}
	if c.MomentumBufferSize != nil {
		cfg.Momentum.BufferSize = *c.MomentumBufferSize
	}
	if c.MomentumChangeThreshold != nil {
		cfg.Momentum.ChangeThreshold = *c.MomentumChangeThreshold
	}
	if c.PredictionEnabled != nil {
		cfg.Prediction.Enabled = *c.PredictionEnabled
	}
	if c.PredictionHorizonMs != nil {
		cfg.Prediction.HorizonMs = *c.PredictionHorizonMs
	}
	if c.PredictionConfidenceThreshold != nil {
		cfg.Prediction.ConfidenceThreshold = *c.PredictionConfidenceThreshold
	}
	return cfg
}

// FromStability fills the stability fields from a concrete config, for
// echoing the live tuning back out of the params endpoint.
func FromStability(cfg stability.Config) *TuningConfig {
	inertia := make([]float64, ale.NumLevels)
	copy(inertia, cfg.InertiaByLevel[:])
	return &TuningConfig{
		GlobalCooldownMs:              ptrFloat64(cfg.GlobalCooldownMs),
		DefaultHoldMs:                 ptrFloat64(cfg.DefaultHoldMs),
		InertiaByLevel:                inertia,
		DecayEnabled:                  ptrBool(cfg.Decay.Enabled),
		DecayBaselineLevel:            ptrInt(int(cfg.Decay.BaselineLevel)),
		DecayRatePerSecond:            ptrFloat64(cfg.Decay.RatePerSecond),
		DecayDelayMs:                  ptrFloat64(cfg.Decay.DelayMs),
		DecayPauseDuringHold:          ptrBool(cfg.Decay.PauseDuringHold),
		MomentumEnabled:               ptrBool(cfg.Momentum.Enabled),
		MomentumBufferSize:            ptrInt(cfg.Momentum.BufferSize),
		MomentumChangeThreshold:       ptrFloat64(cfg.Momentum.ChangeThreshold),
		PredictionEnabled:             ptrBool(cfg.Prediction.Enabled),
		PredictionHorizonMs:           ptrFloat64(cfg.Prediction.HorizonMs),
		PredictionConfidenceThreshold: ptrFloat64(cfg.Prediction.ConfidenceThreshold),
	}
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *TuningConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 10 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 10 * time.Millisecond // default on parse error
	}
	return d
}

// GetSnapshotInterval parses and returns the SnapshotInterval as a time.Duration.
func (c *TuningConfig) GetSnapshotInterval() time.Duration {
	if c.SnapshotInterval == nil || *c.SnapshotInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.SnapshotInterval)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetContentDir returns the content_dir value or the default.
func (c *TuningConfig) GetContentDir() string {
	if c.ContentDir == nil || *c.ContentDir == "" {
		return "content"
	}
	return *c.ContentDir
}

// GetSessionDBPath returns the session_db_path value or the default.
func (c *TuningConfig) GetSessionDBPath() string {
	if c.SessionDBPath == nil || *c.SessionDBPath == "" {
		return "sessions.db"
	}
	return *c.SessionDBPath
}

// GetRecordSessions returns the record_sessions value or the default.
func (c *TuningConfig) GetRecordSessions() bool {
	if c.RecordSessions == nil {
		return false // default: recording disabled
	}
	return *c.RecordSessions
}

// Merge overlays the set fields of other onto a copy of c. Used by the
// params endpoint so a partial POST only touches the fields it names.
func (c *TuningConfig) Merge(other *TuningConfig) *TuningConfig {
	out := *c
	if other == nil {
		return &out
	}
	if other.GlobalCooldownMs != nil {
		out.GlobalCooldownMs = other.GlobalCooldownMs
	}
	if other.DefaultHoldMs != nil {
		out.DefaultHoldMs = other.DefaultHoldMs
	}
	if len(other.InertiaByLevel) > 0 {
		out.InertiaByLevel = other.InertiaByLevel
	}
	if other.DecayEnabled != nil {
		out.DecayEnabled = other.DecayEnabled
	}
	if other.DecayBaselineLevel != nil {
		out.DecayBaselineLevel = other.DecayBaselineLevel
	}
	if other.DecayRatePerSecond != nil {
		out.DecayRatePerSecond = other.DecayRatePerSecond
	}
	if other.DecayDelayMs != nil {
		out.DecayDelayMs = other.DecayDelayMs
	}
	if other.DecayPauseDuringHold != nil {
		out.DecayPauseDuringHold = other.DecayPauseDuringHold
	}
	if other.MomentumEnabled != nil {
		out.MomentumEnabled = other.MomentumEnabled
	}
	if other.MomentumBufferSize != nil {
		out.MomentumBufferSize = other.MomentumBufferSize
	}
	if other.MomentumChangeThreshold != nil {
		out.MomentumChangeThreshold = other.MomentumChangeThreshold
	}
	if other.PredictionEnabled != nil {
		out.PredictionEnabled = other.PredictionEnabled
	}
	if other.PredictionHorizonMs != nil {
		out.PredictionHorizonMs = other.PredictionHorizonMs
	}
	if other.PredictionConfidenceThreshold != nil {
		out.PredictionConfidenceThreshold = other.PredictionConfidenceThreshold
	}
	if other.TickInterval != nil {
		out.TickInterval = other.TickInterval
	}
	if other.ContentDir != nil {
		out.ContentDir = other.ContentDir
	}
	if other.SessionDBPath != nil {
		out.SessionDBPath = other.SessionDBPath
	}
	if other.SnapshotInterval != nil {
		out.SnapshotInterval = other.SnapshotInterval
	}
	if other.RecordSessions != nil {
		out.RecordSessions = other.RecordSessions
	}
	return &out
}
