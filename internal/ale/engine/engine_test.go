package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/contexts"
	"github.com/banshee-data/adaptive.audio/internal/ale/rules"
	"github.com/banshee-data/adaptive.audio/internal/ale/signals"
	"github.com/banshee-data/adaptive.audio/internal/ale/stability"
	"github.com/banshee-data/adaptive.audio/internal/ale/transition"
)

// immediateProfiles builds a registry whose default profile starts at once
// and finishes in 200ms, so tests can step through phases deterministically.
func immediateProfiles(t *testing.T) *transition.Registry {
	t.Helper()
	r, err := transition.NewRegistry(
		&transition.Profile{
			ID:      transition.DefaultProfileID,
			Sync:    transition.Immediate,
			FadeOut: transition.FadeSpec{DurationMs: 100, Curve: transition.Linear},
			FadeIn:  transition.FadeSpec{DurationMs: 100, Curve: transition.Linear},
		},
		&transition.Profile{
			ID:      "downshift_smooth",
			Sync:    transition.Immediate,
			FadeOut: transition.FadeSpec{DurationMs: 100, Curve: transition.Linear},
			FadeIn:  transition.FadeSpec{DurationMs: 100, Curve: transition.Linear},
		},
	)
	require.NoError(t, err)
	return r
}

func testContexts(t *testing.T) *contexts.Registry {
	t.Helper()
	start3 := ale.LayerID(3)
	reg, err := contexts.NewRegistry(
		&contexts.Context{
			ID:             "base_game",
			AudioCharacter: contexts.AudioCharacter{BPM: 120, TimeSigNumerator: 4},
			Constraints:    contexts.Constraints{MinLevel: 0, MaxLevel: 4},
			EntryPolicy:    contexts.EntryPolicy{DefaultStartLevel: 1},
		},
		&contexts.Context{
			ID:             "free_spins",
			AudioCharacter: contexts.AudioCharacter{BPM: 140, TimeSigNumerator: 4},
			Constraints:    contexts.Constraints{MinLevel: 2, MaxLevel: 4},
			EntryPolicy: contexts.EntryPolicy{
				DefaultStartLevel: 2,
				TriggerMappings: []contexts.TriggerMapping{
					{Trigger: "big_win", StartLevel: &start3, Transition: "default"},
				},
			},
		},
	)
	require.NoError(t, err)
	return reg
}

func testRules(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.NewRegistry(
		&rules.Rule{
			ID:         "upshift",
			ContextID:  "base_game",
			Condition:  rules.Condition{Kind: rules.CondThreshold, Signal: "win_rate", Op: rules.OpGT, Value: 0.5},
			Action:     rules.Action{Kind: rules.ActionShift, Amount: 1},
			CooldownMs: 5000,
		},
	)
	require.NoError(t, err)
	return reg
}

func newTestEngine(t *testing.T, stabCfg stability.Config) *Engine {
	t.Helper()
	return New(Config{
		Contexts:    testContexts(t),
		Rules:       testRules(t),
		Transitions: immediateProfiles(t),
		Stability:   stabCfg,
	})
}

func calmStability() stability.Config {
	cfg := stability.DefaultConfig()
	cfg.GlobalCooldownMs = 0
	cfg.Decay.Enabled = false
	return cfg
}

// sendSignals pushes an UpdateSignals command built from a value map.
func sendSignals(t *testing.T, e *Engine, vals map[string]float32) {
	t.Helper()
	s := signals.New()
	for k, v := range vals {
		s.Set(k, v)
	}
	require.True(t, e.Channel().Send(UpdateSignals(s)))
}

func TestInitialState(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	vols := e.Tick(10)

	assert.Equal(t, float32(1.0), vols.Volumes[1], "engine starts at level 1")
	assert.EqualValues(t, 1, e.Published().Level())
	assert.True(t, e.Published().Playing())
	assert.False(t, e.Published().ManualOverride())
	assert.EqualValues(t, 1, e.Published().Ticks())

	s := e.Channel().PollState()
	require.NotNil(t, s)
	assert.Equal(t, "", s.ContextID)
	assert.EqualValues(t, 1, s.CurrentLevel)
	assert.False(t, s.HasTarget)
	assert.InDelta(t, 10.0, s.TimestampMs, 1e-9)
}

func TestSwitchContextUnknownIsNoOp(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start"))
	e.Tick(10)

	e.Channel().Send(SwitchContext("no_such_context", "start"))
	e.Tick(10)

	s := e.Channel().DrainState()
	require.NotNil(t, s)
	assert.Equal(t, "base_game", s.ContextID, "unknown context leaves the current one")
	assert.False(t, s.HasTarget, "no transition started")
}

func TestSwitchContextEntryPolicy(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("free_spins", "big_win"))
	e.Tick(10)

	s := e.Channel().DrainState()
	require.NotNil(t, s)
	assert.Equal(t, "free_spins", s.ContextID)
	require.True(t, s.HasTarget, "entry at a different level starts a transition")
	assert.EqualValues(t, 3, s.TargetLevel)

	// Run the 200ms transition out.
	for i := 0; i < 30; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 3, e.Published().Level())
	assert.EqualValues(t, testContexts(t).Get("free_spins").Hash(), e.Published().ContextHash())
}

func TestSwitchContextClampsStartLevel(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	// Default start for free_spins is 2, min level 2: entering from level 1
	// with an unmapped trigger must land inside the constraints.
	e.Channel().Send(SwitchContext("free_spins", "unmapped"))
	e.Tick(10)

	s := e.Channel().DrainState()
	require.NotNil(t, s)
	require.True(t, s.HasTarget)
	assert.EqualValues(t, 2, s.TargetLevel)
}

func TestRuleFiresAndCooldownBlocksRefire(t *testing.T) {
	t.Parallel()

	cfg := calmStability()
	cfg.GlobalCooldownMs = 10000
	e := newTestEngine(t, cfg)

	e.Channel().Send(SwitchContext("base_game", "start"))
	sendSignals(t, e, map[string]float32{"win_rate": 0.8})
	e.Tick(10)

	s := e.Channel().DrainState()
	require.NotNil(t, s)
	require.True(t, s.HasTarget, "rule should have fired")
	assert.EqualValues(t, 2, s.TargetLevel)
	assert.Equal(t, "upshift", s.LastFiredRule)

	// Let the transition finish; the signal still satisfies the rule but the
	// global cooldown must block a second change.
	for i := 0; i < 30; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 2, e.Published().Level())

	e.Tick(10)
	s = e.Channel().DrainState()
	require.NotNil(t, s)
	assert.False(t, s.HasTarget, "cooldown holds the level at 2")
	assert.EqualValues(t, 2, s.CurrentLevel)
}

func TestRuleRefiresAfterCooldown(t *testing.T) {
	t.Parallel()

	cfg := calmStability()
	cfg.GlobalCooldownMs = 300
	e := newTestEngine(t, cfg)

	e.Channel().Send(SwitchContext("base_game", "start"))
	sendSignals(t, e, map[string]float32{"win_rate": 0.8})

	// Tick well past transition (200ms), global cooldown (300ms) and the
	// rule's own 5s cooldown.
	for i := 0; i < 600; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 3, e.Published().Level(), "rule fires again once cooldowns expire")
}

func TestManualOverride(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start"))
	e.Channel().Send(ForceLevel(4))
	e.Tick(10)

	assert.True(t, e.Published().ManualOverride())

	// Rules must not fire while overridden, even with a matching signal.
	sendSignals(t, e, map[string]float32{"win_rate": 0.9})
	for i := 0; i < 30; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 4, e.Published().Level())

	s := e.Channel().DrainState()
	require.NotNil(t, s)
	assert.Equal(t, "", s.LastFiredRule, "no rule fired under override")

	// Release clears the flag without starting a transition.
	e.Channel().Send(ReleaseManualOverride())
	e.Tick(10)
	assert.False(t, e.Published().ManualOverride())
	s = e.Channel().DrainState()
	require.NotNil(t, s)
	assert.EqualValues(t, 4, s.CurrentLevel)
}

func TestPauseStopsRuleEvaluation(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start"))
	e.Channel().Send(Pause())
	sendSignals(t, e, map[string]float32{"win_rate": 0.9})
	for i := 0; i < 10; i++ {
		e.Tick(10)
	}
	assert.False(t, e.Published().Playing())
	assert.EqualValues(t, 1, e.Published().Level(), "paused engine holds its level")

	e.Channel().Send(Resume())
	for i := 0; i < 30; i++ {
		e.Tick(10)
	}
	assert.True(t, e.Published().Playing())
	assert.EqualValues(t, 2, e.Published().Level(), "resume lets the rule fire")
}

func TestResetRestoresInitialState(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("free_spins", "big_win"))
	e.Channel().Send(ForceLevel(4))
	for i := 0; i < 30; i++ {
		e.Tick(10)
	}

	e.Channel().Send(Reset())
	e.Tick(10)

	s := e.Channel().DrainState()
	require.NotNil(t, s)
	assert.Equal(t, "", s.ContextID)
	assert.EqualValues(t, 1, s.CurrentLevel)
	assert.False(t, s.ManualOverride)
	assert.True(t, s.Playing)
	assert.Equal(t, "", s.LastFiredRule)
	assert.Equal(t, 0, s.Signals.Len())
	assert.InDelta(t, 10.0, s.TimestampMs, 1e-9, "clock restarts at reset")
}

func TestDecayStepsTowardBaseline(t *testing.T) {
	t.Parallel()

	cfg := calmStability()
	cfg.Decay = stability.DecayConfig{
		Enabled:       true,
		BaselineLevel: 1,
		RatePerSecond: 2,
		DelayMs:       500,
	}
	e := newTestEngine(t, cfg)
	e.Channel().Send(SwitchContext("free_spins", "big_win")) // enters at level 3
	for i := 0; i < 30; i++ {
		e.Tick(10)
	}
	require.EqualValues(t, 3, e.Published().Level())

	// Quiet period: after the 500ms delay, decay accumulates at 2 steps/s.
	// One step lands, the transition runs, then the next step follows.
	for i := 0; i < 200; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 2, e.Published().Level(),
		"decay drifts toward baseline but never below the context floor")
}

func TestUpdateRuleCommandIsNoOp(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start"))
	e.Channel().Send(UpdateRule(&rules.Rule{
		ID:        "new_rule",
		Condition: rules.Condition{Kind: rules.CondThreshold, Signal: "x", Op: rules.OpGT, Value: 0},
		Action:    rules.Action{Kind: rules.ActionToMax},
	}))
	e.Channel().Send(RemoveRule("upshift"))
	sendSignals(t, e, map[string]float32{"win_rate": 0.8, "x": 1})
	for i := 0; i < 30; i++ {
		e.Tick(10)
	}

	// The removed rule still fires and the added rule does not: neither
	// command touched the live registry.
	assert.EqualValues(t, 2, e.Published().Level())
}

func TestSwapRulesTakesEffect(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start"))
	e.Tick(10)

	maxed, err := rules.NewRegistry(&rules.Rule{
		ID:        "always_max",
		Condition: rules.Condition{Kind: rules.CondThreshold, Signal: "win_rate", Op: rules.OpGT, Value: 0.5},
		Action:    rules.Action{Kind: rules.ActionToMax},
	})
	require.NoError(t, err)
	e.SwapRules(maxed)

	sendSignals(t, e, map[string]float32{"win_rate": 0.8})
	for i := 0; i < 40; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 4, e.Published().Level())
}

func TestMatchingRuleLetsTransitionCommit(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start"))
	e.Tick(10)
	e.Channel().DrainState()

	maxed, err := rules.NewRegistry(&rules.Rule{
		ID:        "always_max",
		Condition: rules.Condition{Kind: rules.CondThreshold, Signal: "win_rate", Op: rules.OpGT, Value: 0.5},
		Action:    rules.Action{Kind: rules.ActionToMax},
	})
	require.NoError(t, err)
	e.SwapRules(maxed)

	// Zero cooldowns and a condition that stays true: the rule matches on
	// every tick while the transition is in flight. The transition must keep
	// advancing rather than being restarted each cycle.
	sendSignals(t, e, map[string]float32{"win_rate": 0.8})
	e.Tick(10)
	s := e.Channel().DrainState()
	require.NotNil(t, s)
	require.True(t, s.HasTarget)
	first := s.TransitionProgress

	e.Tick(10)
	s = e.Channel().DrainState()
	require.NotNil(t, s)
	require.True(t, s.HasTarget)
	assert.Greater(t, s.TransitionProgress, first)

	for i := 0; i < 40; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 4, e.Published().Level())
}

func TestSignalReplacementKeepsMomentumDeltas(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	sendSignals(t, e, map[string]float32{"win_rate": 0.5, "anticipation": 0.8})
	e.Tick(10)
	e.Channel().DrainState()

	// Identical telemetry pushed again replaces the snapshot; momentum must
	// read as no movement, not as the absolute values.
	sendSignals(t, e, map[string]float32{"win_rate": 0.5, "anticipation": 0.8})
	e.Tick(10)
	s := e.Channel().DrainState()
	require.NotNil(t, s)
	assert.InDelta(t, 0.0, s.Signals.Momentum(), 1e-6)
}

func TestUpdateStabilityHotSwap(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start"))

	cfg := calmStability()
	cfg.Version = 2
	cfg.GlobalCooldownMs = 60000
	e.Channel().Send(UpdateStability(cfg))
	sendSignals(t, e, map[string]float32{"win_rate": 0.8})
	for i := 0; i < 60; i++ {
		e.Tick(10)
	}
	// First fire is allowed (no cooldown yet), after that the new huge
	// cooldown pins the level.
	assert.EqualValues(t, 2, e.Published().Level())
}

func TestStateQueueOverflowTolerated(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	// Never drain: the state queue (64) fills and the engine keeps going.
	for i := 0; i < 200; i++ {
		e.Tick(10)
	}
	assert.EqualValues(t, 200, e.Published().Ticks())

	// The queued snapshots are the oldest 64; draining yields the newest of
	// those and the engine publishes fresh ones afterwards.
	s := e.Channel().DrainState()
	require.NotNil(t, s)
	e.Tick(10)
	s2 := e.Channel().PollState()
	require.NotNil(t, s2)
	assert.Greater(t, s2.TimestampMs, s.TimestampMs)
}

func TestTransitionVolumesDuringTick(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("free_spins", "big_win")) // 1 -> 3
	vols := e.Tick(10)

	// 10ms into a 100ms linear fade-out: from-layer at 0.9, to-layer silent.
	assert.InDelta(t, 0.9, float64(vols.Volumes[1]), 1e-6)
	assert.Equal(t, float32(0), vols.Volumes[3])

	for i := 0; i < 9; i++ {
		vols = e.Tick(10)
	}
	// 100ms: fade-in begins (zero overlap).
	assert.Equal(t, float32(0), vols.Volumes[1])

	for i := 0; i < 10; i++ {
		vols = e.Tick(10)
	}
	assert.Equal(t, float32(1), vols.Volumes[3], "transition complete")
	assert.EqualValues(t, 3, e.Published().Level())
}

func TestBeatPositionAdvances(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, calmStability())
	e.Channel().Send(SwitchContext("base_game", "start")) // 120 BPM → 500ms beats

	// Drain every tick; an undrained queue would hand back a stale snapshot.
	var s *State
	for i := 0; i < 100; i++ {
		e.Tick(10)
		s = e.Channel().DrainState()
	}
	require.NotNil(t, s)
	assert.InDelta(t, 2.0, s.BeatPosition, 1e-6, "1000ms at 120 BPM is 2 beats")
}
