// Package stability implements the hysteresis engine that decides whether a
// proposed level change may happen now. Seven independent mechanisms are
// combined: global cooldown, per-rule cooldown, hold, inertia, decay,
// momentum smoothing and trend prediction. The engine ticks it every cycle;
// all methods run on the audio thread and never allocate after the ring
// buffers are sized.
package stability

import "github.com/banshee-data/adaptive.audio/internal/ale"

// DecayConfig controls automatic drift back toward a baseline level when
// nothing has changed for a while.
type DecayConfig struct {
	Enabled bool

	// BaselineLevel is the level decay drifts toward, from either direction.
	BaselineLevel ale.LayerID

	// RatePerSecond is the decay speed in level steps per second. The
	// fractional remainder is carried across ticks in an accumulator.
	RatePerSecond float64

	// DelayMs is the quiet period after the last level change before decay
	// starts accumulating.
	DelayMs float64

	// PauseDuringHold freezes decay while a hold is active.
	PauseDuringHold bool
}

// MomentumConfig controls the smoothing ring over the raw momentum signal.
type MomentumConfig struct {
	Enabled bool

	// BufferSize is the ring length; 0 takes DefaultMomentumBufferSize.
	// Changing it at runtime resizes (and clears) the ring.
	BufferSize int

	// ChangeThreshold is the minimum |raw − smoothed| for a momentum sample
	// to count as significant.
	ChangeThreshold float64
}

// PredictionConfig controls regression-based trend extrapolation over the
// recent level history.
type PredictionConfig struct {
	Enabled bool

	// HorizonMs is how far ahead the trend is extrapolated.
	HorizonMs float64

	// ConfidenceThreshold is the minimum R² for a prediction to be reported.
	ConfidenceThreshold float64
}

// Config is the versioned tuning for all seven mechanisms. It is replaceable
// at runtime (UpdateStability command); replacement may resize the momentum
// ring.
type Config struct {
	// Version distinguishes hot-swapped configs in logs and snapshots.
	Version uint32

	// GlobalCooldownMs suppresses all rule-driven changes after any change.
	GlobalCooldownMs float64

	// DefaultHoldMs is substituted when a rule starts a hold with duration 0.
	DefaultHoldMs float64

	// InertiaByLevel is the per-level resistance table; higher levels are
	// harder to move away from. Indexing clamps to the last slot.
	InertiaByLevel [ale.NumLevels]float64

	Decay      DecayConfig
	Momentum   MomentumConfig
	Prediction PredictionConfig
}

// DefaultMomentumBufferSize is the ring length when the config leaves it 0.
const DefaultMomentumBufferSize = 10

// levelHistorySize is the circular level-change log used by prediction.
const levelHistorySize = 20

// predictionWindowMs bounds how far back prediction looks.
const predictionWindowMs = 10000

// minTrendSlope rejects near-flat regressions as "no trend" (levels/ms).
const minTrendSlope = 0.0001

// DefaultConfig returns the tuning used when no file overrides it.
func DefaultConfig() Config {
	return Config{
		GlobalCooldownMs: 1500,
		DefaultHoldMs:    4000,
		InertiaByLevel:   [ale.NumLevels]float64{0.2, 0.35, 0.5, 0.7, 0.9},
		Decay: DecayConfig{
			Enabled:         true,
			BaselineLevel:   0,
			RatePerSecond:   0.25,
			DelayMs:         8000,
			PauseDuringHold: true,
		},
		Momentum: MomentumConfig{
			Enabled:         true,
			BufferSize:      DefaultMomentumBufferSize,
			ChangeThreshold: 0.3,
		},
		Prediction: PredictionConfig{
			Enabled:             false,
			HorizonMs:           2000,
			ConfidenceThreshold: 0.6,
		},
	}
}

// momentumBufferSize resolves the configured ring length.
func (c *Config) momentumBufferSize() int {
	if c.Momentum.BufferSize <= 0 {
		return DefaultMomentumBufferSize
	}
	return c.Momentum.BufferSize
}
