package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearProfile(dOut, overlap, dIn float64) *Profile {
	return &Profile{
		ID:        "test",
		Sync:      Immediate,
		FadeOut:   FadeSpec{DurationMs: dOut, Curve: Linear},
		FadeIn:    FadeSpec{DurationMs: dIn, Curve: Linear},
		OverlapMs: overlap,
	}
}

func TestPhaseSequencing(t *testing.T) {
	t.Parallel()

	a := Start(linearProfile(100, 50, 100), 1, 2, 0, 0)
	require.True(t, a.Started(), "zero sync delay starts immediately")
	assert.Equal(t, PhaseFadeOut, a.Phase())

	a.Tick(50)
	assert.Equal(t, PhaseFadeOut, a.Phase())
	assert.InDelta(t, 0.5, a.PhaseProgress(), 1e-9)
	assert.False(t, a.IsComplete())

	a.Tick(100)
	assert.Equal(t, PhaseCrossfade, a.Phase())

	a.Tick(150)
	assert.Equal(t, PhaseFadeIn, a.Phase())

	a.Tick(249)
	assert.False(t, a.IsComplete())

	a.Tick(250)
	assert.Equal(t, PhaseComplete, a.Phase())
	assert.True(t, a.IsComplete())
	assert.InDelta(t, 1.0, a.Progress(), 1e-9)
}

func TestSyncWaitThenStart(t *testing.T) {
	t.Parallel()

	a := Start(linearProfile(100, 0, 100), 1, 2, 1000, 300)
	assert.False(t, a.Started())
	assert.Equal(t, PhaseWaitingForSync, a.Phase())
	assert.Equal(t, float32(1), a.FromVolume(), "old layer stays at full volume while waiting")
	assert.Equal(t, float32(0), a.ToVolume())
	assert.Equal(t, 0.0, a.Progress())

	a.Tick(1299)
	assert.Equal(t, PhaseWaitingForSync, a.Phase())

	// The internal clock resets to the post-sync start: at t=1350 the fade
	// has run 50ms, not 350ms.
	a.Tick(1350)
	require.True(t, a.Started())
	assert.Equal(t, PhaseFadeOut, a.Phase())
	assert.InDelta(t, 0.5, a.PhaseProgress(), 1e-9)
}

func TestCrossfadeVolumeLaw(t *testing.T) {
	t.Parallel()

	// Zero overlap, linear curves: from falls 1→0 over FadeOut, to rises
	// 0→1 over FadeIn, and each is silent in the other's phase.
	a := Start(linearProfile(100, 0, 100), 0, 3, 0, 0)

	for _, tick := range []float64{0, 25, 50, 75, 99} {
		a.Tick(tick)
		require.Equal(t, PhaseFadeOut, a.Phase())
		assert.InDelta(t, 1-tick/100, float64(a.FromVolume()), 1e-6, "t=%v", tick)
		assert.Equal(t, float32(0), a.ToVolume(), "t=%v", tick)
	}
	for _, tick := range []float64{100, 125, 150, 175, 199} {
		a.Tick(tick)
		require.Equal(t, PhaseFadeIn, a.Phase())
		assert.Equal(t, float32(0), a.FromVolume(), "t=%v", tick)
		assert.InDelta(t, (tick-100)/100, float64(a.ToVolume()), 1e-6, "t=%v", tick)
	}

	a.Tick(200)
	assert.Equal(t, float32(0), a.FromVolume())
	assert.Equal(t, float32(1), a.ToVolume())
}

func TestCrossfadeOverlapVolumes(t *testing.T) {
	t.Parallel()

	a := Start(linearProfile(100, 100, 100), 0, 3, 0, 0)

	// Overlap midpoint: old layer halfway down from the floor, new layer
	// halfway between floor and full.
	a.Tick(150)
	require.Equal(t, PhaseCrossfade, a.Phase())
	assert.InDelta(t, 0.15, float64(a.FromVolume()), 1e-6)
	assert.InDelta(t, 0.65, float64(a.ToVolume()), 1e-6)

	// Overlap start and end.
	a2 := Start(linearProfile(100, 100, 100), 0, 3, 0, 0)
	a2.Tick(100)
	assert.InDelta(t, 0.3, float64(a2.FromVolume()), 1e-6)
	assert.InDelta(t, 0.3, float64(a2.ToVolume()), 1e-6)
}

func TestDuckingAppliesDuringOverlapOnly(t *testing.T) {
	t.Parallel()

	p := linearProfile(100, 100, 100)
	p.Ducking = DuckingConfig{Enabled: true, Amount: 0.5}
	a := Start(p, 0, 3, 0, 0)

	a.Tick(50) // FadeOut: unducked
	assert.InDelta(t, 0.5, float64(a.FromVolume()), 1e-6)

	a.Tick(100) // Crossfade entry: both at floor * duck gain
	assert.InDelta(t, 0.15, float64(a.FromVolume()), 1e-6)
	assert.InDelta(t, 0.15, float64(a.ToVolume()), 1e-6)

	a.Tick(250) // FadeIn: unducked
	assert.InDelta(t, 0.5, float64(a.ToVolume()), 1e-6)
}

func TestZeroDurationProfileCompletesImmediately(t *testing.T) {
	t.Parallel()

	a := Start(linearProfile(0, 0, 0), 2, 4, 500, 0)
	assert.True(t, a.IsComplete())
	assert.Equal(t, float32(1), a.ToVolume())
	assert.InDelta(t, 1.0, a.Progress(), 1e-9)
}

func TestProgressAcrossPhases(t *testing.T) {
	t.Parallel()

	a := Start(linearProfile(100, 50, 100), 1, 2, 0, 0)
	a.Tick(125)
	// 125 of 250 total.
	assert.InDelta(t, 0.5, a.Progress(), 1e-9)
}

func TestRegistryFallsBackToDefault(t *testing.T) {
	t.Parallel()

	r := WithBuiltins()
	assert.Equal(t, 5, r.Len())
	assert.Equal(t, DefaultProfileID, r.Get("nonexistent").ID)
	assert.Equal(t, DefaultProfileID, r.Get("").ID)
	assert.Equal(t, "feature_enter", r.Get("feature_enter").ID)
	assert.Equal(t, DefaultProfileID, r.DefaultProfile().ID)
}

func TestRegistryRequiresDefault(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(&Profile{ID: "only_one"})
	assert.Error(t, err)

	_, err = NewRegistry(&Profile{ID: "default"}, &Profile{ID: "default"})
	assert.Error(t, err)
}
