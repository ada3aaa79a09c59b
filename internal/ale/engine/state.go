package engine

import (
	"sync/atomic"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/signals"
)

// State is the immutable snapshot the engine publishes once per tick.
// Freshly constructed each tick, handed to the state queue, read-only
// thereafter; the control side must not mutate it.
type State struct {
	// ContextID is the active context, "" when none.
	ContextID string

	// CurrentLevel is the committed level.
	CurrentLevel ale.LayerID

	// TargetLevel is where the active transition is heading; valid only
	// when HasTarget is true.
	TargetLevel ale.LayerID
	HasTarget   bool

	// TransitionProgress is overall transition progress 0..1; 0 when idle.
	TransitionProgress float64

	Playing        bool
	ManualOverride bool

	// LastFiredRule is the id of the most recent rule that produced a
	// transition, "" when none has fired since reset.
	LastFiredRule string

	// HoldRemainingMs is the time left on the active hold, 0 when none.
	HoldRemainingMs float64

	// Signals is a copy of the tick's signal snapshot.
	Signals *signals.Signals

	// BeatPosition is the free-running fractional beat clock.
	BeatPosition float64

	// TimestampMs is the engine clock at publish time.
	TimestampMs float64
}

// Published mirrors a handful of engine fields into independent atomics so
// external readers can poll without synchronizing with the tick loop. Each
// field is independently meaningful; no cross-field atomicity is promised.
// Written only by the engine thread.
type Published struct {
	level       atomic.Uint32
	contextHash atomic.Uint32
	playing     atomic.Bool
	override    atomic.Bool
	ticks       atomic.Uint64
}

// Level returns the last committed level.
func (p *Published) Level() ale.LayerID { return ale.LayerID(p.level.Load()) }

// ContextHash returns the active context's stable hash, 0 when none.
func (p *Published) ContextHash() uint32 { return p.contextHash.Load() }

// Playing returns the playing flag.
func (p *Published) Playing() bool { return p.playing.Load() }

// ManualOverride returns the override flag.
func (p *Published) ManualOverride() bool { return p.override.Load() }

// Ticks returns the number of completed engine ticks.
func (p *Published) Ticks() uint64 { return p.ticks.Load() }

// store is called by the engine at the end of every tick.
func (p *Published) store(level ale.LayerID, contextHash uint32, playing, override bool) {
	p.level.Store(uint32(level))
	p.contextHash.Store(contextHash)
	p.playing.Store(playing)
	p.override.Store(override)
	p.ticks.Add(1)
}
