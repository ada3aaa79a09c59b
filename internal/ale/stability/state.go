package stability

import (
	"math"

	"github.com/banshee-data/adaptive.audio/internal/ale"
)

// levelSample is one entry in the circular level-change log.
type levelSample struct {
	atMs  float64
	level ale.LayerID
}

// State is the mutable runtime side of the hysteresis engine. It is owned by
// the engine thread; nothing here is safe for concurrent use.
type State struct {
	cfg Config

	// Cooldowns. Windows are half-open: blocked while now < until.
	globalCooldownUntil float64
	ruleCooldownUntil   map[string]float64

	// Hold.
	holdUntil float64
	heldLevel ale.LayerID

	// Last committed level change, for decay delay and the history log.
	lastChangeMs  float64
	hasChanged    bool
	history       [levelHistorySize]levelSample
	historyWrite  int
	historyFilled int

	// Momentum smoothing ring.
	momentumBuf      []float64
	momentumWrite    int
	momentumFilled   int
	smoothedMomentum float64

	// Decay fractional accumulator; stays in [0,1) between ticks.
	decayAccum float64

	// Prediction scratch, sized once so PredictTrend never allocates.
	predXs  [levelHistorySize]float64
	predYs  [levelHistorySize]float64
	predFit [levelHistorySize]float64

	lastPrediction    Prediction
	hasLastPrediction bool
}

// NewState builds a State for cfg.
func NewState(cfg Config) *State {
	s := &State{
		ruleCooldownUntil: make(map[string]float64, 16),
	}
	s.ApplyConfig(cfg)
	return s
}

// Config returns the active configuration.
func (s *State) Config() Config { return s.cfg }

// ApplyConfig hot-swaps the tuning. The momentum ring is resized (and
// cleared) when the configured length changes; everything else carries over.
func (s *State) ApplyConfig(cfg Config) {
	s.cfg = cfg
	n := cfg.momentumBufferSize()
	if len(s.momentumBuf) != n {
		s.momentumBuf = make([]float64, n)
		s.momentumWrite = 0
		s.momentumFilled = 0
		s.smoothedMomentum = 0
	}
}

// Reset clears all runtime state (context switch, engine reset). The config
// is kept.
func (s *State) Reset() {
	s.globalCooldownUntil = 0
	for k := range s.ruleCooldownUntil {
		delete(s.ruleCooldownUntil, k)
	}
	s.holdUntil = 0
	s.heldLevel = 0
	s.lastChangeMs = 0
	s.hasChanged = false
	s.historyWrite = 0
	s.historyFilled = 0
	for i := range s.momentumBuf {
		s.momentumBuf[i] = 0
	}
	s.momentumWrite = 0
	s.momentumFilled = 0
	s.smoothedMomentum = 0
	s.decayAccum = 0
	s.hasLastPrediction = false
}

// ---------------------------------------------------------------------------
// Mechanism 1+2: cooldowns
// ---------------------------------------------------------------------------

// StartGlobalCooldown opens the global suppression window at nowMs.
func (s *State) StartGlobalCooldown(nowMs float64) {
	s.globalCooldownUntil = nowMs + s.cfg.GlobalCooldownMs
}

// GlobalCooldownActive reports whether the global window blocks changes at
// nowMs.
func (s *State) GlobalCooldownActive(nowMs float64) bool {
	return nowMs < s.globalCooldownUntil
}

// StartRuleCooldown opens a per-rule suppression window. A non-positive
// duration is a no-op.
func (s *State) StartRuleCooldown(ruleID string, durationMs, nowMs float64) {
	if durationMs <= 0 {
		return
	}
	s.ruleCooldownUntil[ruleID] = nowMs + durationMs
}

// RuleCooldownActive reports whether ruleID is in cooldown at nowMs.
func (s *State) RuleCooldownActive(ruleID string, nowMs float64) bool {
	until, ok := s.ruleCooldownUntil[ruleID]
	return ok && nowMs < until
}

// ---------------------------------------------------------------------------
// Mechanism 3: hold
// ---------------------------------------------------------------------------

// StartHold locks level against hold-respecting rules. A zero duration
// substitutes the configured default hold.
func (s *State) StartHold(level ale.LayerID, durationMs, nowMs float64) {
	if durationMs <= 0 {
		durationMs = s.cfg.DefaultHoldMs
	}
	s.holdUntil = nowMs + durationMs
	s.heldLevel = level
}

// HoldActive reports whether a hold is in force at nowMs.
func (s *State) HoldActive(nowMs float64) bool {
	return nowMs < s.holdUntil
}

// HeldLevel returns the held level while the hold is active.
func (s *State) HeldLevel(nowMs float64) (ale.LayerID, bool) {
	if !s.HoldActive(nowMs) {
		return 0, false
	}
	return s.heldLevel, true
}

// HoldRemainingMs returns how much hold time is left, 0 when inactive.
func (s *State) HoldRemainingMs(nowMs float64) float64 {
	if !s.HoldActive(nowMs) {
		return 0
	}
	return s.holdUntil - nowMs
}

// ---------------------------------------------------------------------------
// Mechanism 4: inertia
// ---------------------------------------------------------------------------

// GetInertia returns the resistance factor for level; levels past the table
// clamp to the last slot.
func (s *State) GetInertia(level ale.LayerID) float64 {
	i := int(level)
	if i >= ale.NumLevels {
		i = ale.NumLevels - 1
	}
	return s.cfg.InertiaByLevel[i]
}

// PassesInertia reports whether signalStrength is enough to move away from
// level. The core loop does not gate on this itself; conditions that want
// inertia weighting call it explicitly.
func (s *State) PassesInertia(level ale.LayerID, signalStrength float64) bool {
	return signalStrength >= s.GetInertia(level)*0.5
}

// ---------------------------------------------------------------------------
// Mechanism 5: decay
// ---------------------------------------------------------------------------

// CalculateDecay accumulates decay over deltaMs and returns one single step
// toward the baseline when the accumulator rolls over. The step is at most
// one level per tick no matter how large deltaMs is; whole extra steps are
// forfeited so the accumulator stays in [0,1) between ticks.
func (s *State) CalculateDecay(current ale.LayerID, nowMs, deltaMs float64) (ale.LayerID, bool) {
	d := &s.cfg.Decay
	if !d.Enabled || current == d.BaselineLevel {
		return current, false
	}
	if d.PauseDuringHold && s.HoldActive(nowMs) {
		return current, false
	}
	if !s.hasChanged || nowMs-s.lastChangeMs < d.DelayMs {
		return current, false
	}

	s.decayAccum += d.RatePerSecond / 1000 * deltaMs
	if s.decayAccum < 1 {
		return current, false
	}
	s.decayAccum -= 1
	if s.decayAccum >= 1 {
		s.decayAccum -= math.Floor(s.decayAccum)
	}

	if current > d.BaselineLevel {
		return current - 1, true
	}
	return current + 1, true
}

// DecayAccumulator exposes the fractional accumulator for snapshots/tests.
func (s *State) DecayAccumulator() float64 { return s.decayAccum }

// ---------------------------------------------------------------------------
// Mechanism 6: momentum smoothing
// ---------------------------------------------------------------------------

// UpdateMomentum feeds one raw momentum sample into the smoothing ring and
// recomputes the mean. With smoothing disabled, the smoothed value tracks
// the raw input directly.
func (s *State) UpdateMomentum(raw float64) {
	if !s.cfg.Momentum.Enabled {
		s.smoothedMomentum = raw
		return
	}
	s.momentumBuf[s.momentumWrite] = raw
	s.momentumWrite = (s.momentumWrite + 1) % len(s.momentumBuf)
	if s.momentumFilled < len(s.momentumBuf) {
		s.momentumFilled++
	}
	var sum float64
	for i := 0; i < s.momentumFilled; i++ {
		sum += s.momentumBuf[i]
	}
	s.smoothedMomentum = sum / float64(s.momentumFilled)
}

// SmoothedMomentum returns the current smoothed value.
func (s *State) SmoothedMomentum() float64 { return s.smoothedMomentum }

// IsMomentumSignificant reports whether raw deviates from the smoothed
// value by at least the configured threshold.
func (s *State) IsMomentumSignificant(raw float64) bool {
	return math.Abs(raw-s.smoothedMomentum) >= s.cfg.Momentum.ChangeThreshold
}

// ---------------------------------------------------------------------------
// Change recording and the composite gate
// ---------------------------------------------------------------------------

// RecordLevelChange logs a committed level change: it feeds the prediction
// history, restarts the decay delay and zeroes the decay accumulator.
func (s *State) RecordLevelChange(level ale.LayerID, nowMs float64) {
	s.lastChangeMs = nowMs
	s.hasChanged = true
	s.decayAccum = 0
	s.history[s.historyWrite] = levelSample{atMs: nowMs, level: level}
	s.historyWrite = (s.historyWrite + 1) % levelHistorySize
	if s.historyFilled < levelHistorySize {
		s.historyFilled++
	}
}

// LastChangeMs returns the time of the last recorded change and whether one
// has been recorded at all.
func (s *State) LastChangeMs() (float64, bool) {
	return s.lastChangeMs, s.hasChanged
}

// CanChangeLevel is the composite gate for rule-driven changes:
// no global cooldown, no cooldown for this rule, and — only when the rule
// respects holds — no active hold.
func (s *State) CanChangeLevel(ruleID string, requiresHoldExpired bool, nowMs float64) bool {
	if s.GlobalCooldownActive(nowMs) {
		return false
	}
	if s.RuleCooldownActive(ruleID, nowMs) {
		return false
	}
	if requiresHoldExpired && s.HoldActive(nowMs) {
		return false
	}
	return true
}
