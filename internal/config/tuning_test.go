package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "global_cooldown_ms": 2000,
  "default_hold_ms": 6000,
  "inertia_by_level": [0.1, 0.2, 0.3, 0.4, 0.5],
  "decay_enabled": false,
  "tick_interval": "20ms",
  "record_sessions": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GlobalCooldownMs == nil || *cfg.GlobalCooldownMs != 2000 {
		t.Errorf("Expected GlobalCooldownMs 2000, got %v", cfg.GlobalCooldownMs)
	}
	if cfg.DefaultHoldMs == nil || *cfg.DefaultHoldMs != 6000 {
		t.Errorf("Expected DefaultHoldMs 6000, got %v", cfg.DefaultHoldMs)
	}
	if len(cfg.InertiaByLevel) != 5 || cfg.InertiaByLevel[4] != 0.5 {
		t.Errorf("Expected 5 inertia entries ending in 0.5, got %v", cfg.InertiaByLevel)
	}
	if cfg.DecayEnabled == nil || *cfg.DecayEnabled != false {
		t.Errorf("Expected DecayEnabled false, got %v", cfg.DecayEnabled)
	}
	if cfg.GetTickInterval() != 20*time.Millisecond {
		t.Errorf("Expected tick interval 20ms, got %v", cfg.GetTickInterval())
	}
	if cfg.GetRecordSessions() != true {
		t.Errorf("Expected RecordSessions true, got %v", cfg.GetRecordSessions())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "global_cooldown_ms": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "negative global cooldown",
			cfg: &TuningConfig{
				GlobalCooldownMs: ptrFloat64(-100),
			},
			wantErr: true,
		},
		{
			name: "wrong inertia table length",
			cfg: &TuningConfig{
				InertiaByLevel: []float64{0.1, 0.2},
			},
			wantErr: true,
		},
		{
			name: "inertia out of range",
			cfg: &TuningConfig{
				InertiaByLevel: []float64{0.1, 0.2, 0.3, 0.4, 1.5},
			},
			wantErr: true,
		},
		{
			name: "baseline level out of range",
			cfg: &TuningConfig{
				DecayBaselineLevel: ptrInt(5),
			},
			wantErr: true,
		},
		{
			name: "zero momentum buffer",
			cfg: &TuningConfig{
				MomentumBufferSize: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "confidence above one",
			cfg: &TuningConfig{
				PredictionConfidenceThreshold: ptrFloat64(1.5),
			},
			wantErr: true,
		},
		{
			name: "invalid tick interval",
			cfg: &TuningConfig{
				TickInterval: ptrString("invalid"),
			},
			wantErr: true,
		},
		{
			name: "invalid snapshot interval",
			cfg: &TuningConfig{
				SnapshotInterval: ptrString("invalid"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetTickInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  *TuningConfig
		want time.Duration
	}{
		{
			name: "10 milliseconds",
			cfg: &TuningConfig{
				TickInterval: ptrString("10ms"),
			},
			want: 10 * time.Millisecond,
		},
		{
			name: "one second",
			cfg: &TuningConfig{
				TickInterval: ptrString("1s"),
			},
			want: time.Second,
		},
		{
			name: "nil pointer returns default",
			cfg:  &TuningConfig{},
			want: 10 * time.Millisecond,
		},
		{
			name: "empty string returns default",
			cfg: &TuningConfig{
				TickInterval: ptrString(""),
			},
			want: 10 * time.Millisecond,
		},
		{
			name: "invalid duration returns default",
			cfg: &TuningConfig{
				TickInterval: ptrString("invalid"),
			},
			want: 10 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.GetTickInterval()
			if got != tt.want {
				t.Errorf("GetTickInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestToStabilityDefaults(t *testing.T) {
	// An empty config must materialize to exactly the engine defaults.
	cfg := (&TuningConfig{}).ToStability()

	if cfg.GlobalCooldownMs != 1500 {
		t.Errorf("GlobalCooldownMs = %f, want 1500", cfg.GlobalCooldownMs)
	}
	if cfg.DefaultHoldMs != 4000 {
		t.Errorf("DefaultHoldMs = %f, want 4000", cfg.DefaultHoldMs)
	}
	if !cfg.Decay.Enabled {
		t.Error("Decay.Enabled = false, want true")
	}
	if cfg.Momentum.BufferSize != 10 {
		t.Errorf("Momentum.BufferSize = %d, want 10", cfg.Momentum.BufferSize)
	}
}

func TestToStabilityOverrides(t *testing.T) {
	tc := &TuningConfig{
		GlobalCooldownMs:   ptrFloat64(2500),
		InertiaByLevel:     []float64{0, 0.1, 0.2, 0.3, 0.4},
		DecayEnabled:       ptrBool(false),
		DecayRatePerSecond: ptrFloat64(1.0),
		PredictionEnabled:  ptrBool(true),
	}
	cfg := tc.ToStability()

	if cfg.GlobalCooldownMs != 2500 {
		t.Errorf("GlobalCooldownMs = %f, want 2500", cfg.GlobalCooldownMs)
	}
	if cfg.InertiaByLevel[4] != 0.4 {
		t.Errorf("InertiaByLevel[4] = %f, want 0.4", cfg.InertiaByLevel[4])
	}
	if cfg.Decay.Enabled {
		t.Error("Decay.Enabled = true, want false")
	}
	if cfg.Decay.RatePerSecond != 1.0 {
		t.Errorf("Decay.RatePerSecond = %f, want 1.0", cfg.Decay.RatePerSecond)
	}
	if !cfg.Prediction.Enabled {
		t.Error("Prediction.Enabled = false, want true")
	}
	// Untouched fields keep their defaults.
	if cfg.DefaultHoldMs != 4000 {
		t.Errorf("DefaultHoldMs = %f, want default 4000", cfg.DefaultHoldMs)
	}
}

func TestFromStabilityRoundTrip(t *testing.T) {
	tc := &TuningConfig{
		GlobalCooldownMs: ptrFloat64(3000),
		DecayDelayMs:     ptrFloat64(12000),
	}
	out := FromStability(tc.ToStability())

	if out.GlobalCooldownMs == nil || *out.GlobalCooldownMs != 3000 {
		t.Errorf("GlobalCooldownMs = %v, want 3000", out.GlobalCooldownMs)
	}
	if out.DecayDelayMs == nil || *out.DecayDelayMs != 12000 {
		t.Errorf("DecayDelayMs = %v, want 12000", out.DecayDelayMs)
	}
	if len(out.InertiaByLevel) != 5 {
		t.Errorf("InertiaByLevel length = %d, want 5", len(out.InertiaByLevel))
	}
}

func TestMerge(t *testing.T) {
	base := &TuningConfig{
		GlobalCooldownMs: ptrFloat64(1500),
		DefaultHoldMs:    ptrFloat64(4000),
		RecordSessions:   ptrBool(false),
	}
	out := base.Merge(&TuningConfig{
		GlobalCooldownMs: ptrFloat64(500),
		RecordSessions:   ptrBool(true),
	})

	if *out.GlobalCooldownMs != 500 {
		t.Errorf("GlobalCooldownMs = %f, want overridden 500", *out.GlobalCooldownMs)
	}
	if *out.DefaultHoldMs != 4000 {
		t.Errorf("DefaultHoldMs = %f, want preserved 4000", *out.DefaultHoldMs)
	}
	if !*out.RecordSessions {
		t.Error("RecordSessions = false, want overridden true")
	}

	// Merging nil is a copy.
	copied := base.Merge(nil)
	if diff := cmp.Diff(base, copied); diff != "" {
		t.Errorf("Merge(nil) differs from base (-want +got):\n%s", diff)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.GlobalCooldownMs == nil || *cfg.GlobalCooldownMs != 1500 {
		t.Errorf("Expected GlobalCooldownMs 1500, got %v", cfg.GlobalCooldownMs)
	}
	if cfg.GetTickInterval() != 10*time.Millisecond {
		t.Errorf("Expected tick interval 10ms, got %v", cfg.GetTickInterval())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the cooldown; everything else keeps
	// engine defaults after materialization.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "global_cooldown_ms": 800
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	stab := cfg.ToStability()
	if stab.GlobalCooldownMs != 800 {
		t.Errorf("Expected overridden cooldown 800, got %f", stab.GlobalCooldownMs)
	}
	if stab.DefaultHoldMs != 4000 {
		t.Errorf("Expected default hold 4000, got %f", stab.DefaultHoldMs)
	}
	if cfg.GetTickInterval() != 10*time.Millisecond {
		t.Errorf("Expected default tick interval 10ms, got %v", cfg.GetTickInterval())
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}
