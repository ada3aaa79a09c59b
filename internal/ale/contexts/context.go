// Package contexts defines the scenario model: a Context is a named game
// state (base game, free spins, a bonus feature) carrying its own musical
// timing, level constraints, entry policy and narrative arc. Contexts are
// immutable after registry construction; the engine only ever reads them.
package contexts

import (
	"hash/fnv"
	"math"

	"github.com/banshee-data/adaptive.audio/internal/ale"
)

// AudioCharacter describes the musical timing of a context's content.
type AudioCharacter struct {
	BPM              float64 // authored tempo; 0 falls back to 120
	TimeSigNumerator uint8   // beats per bar; 0 falls back to 4
}

// BeatDurationMs returns the duration of one beat in milliseconds.
func (a AudioCharacter) BeatDurationMs() float64 {
	bpm := a.BPM
	if bpm <= 0 {
		bpm = 120
	}
	return 60000.0 / bpm
}

// BeatsPerBar returns the time-signature numerator, defaulting to 4.
func (a AudioCharacter) BeatsPerBar() float64 {
	if a.TimeSigNumerator == 0 {
		return 4
	}
	return float64(a.TimeSigNumerator)
}

// Constraints bound which levels a context may ever play.
type Constraints struct {
	MinLevel ale.LayerID
	MaxLevel ale.LayerID
}

// Clamp applies the constraint range to level.
func (c Constraints) Clamp(level ale.LayerID) ale.LayerID {
	return ale.ClampLevel(level, c.MinLevel, c.MaxLevel)
}

// TriggerMapping pairs an entry trigger (how the context was entered) with
// an optional start level and transition profile id.
type TriggerMapping struct {
	Trigger    string
	StartLevel *ale.LayerID // nil keeps the entry policy default
	Transition string       // empty uses the registry default profile
}

// EntryPolicy decides the level a context starts at for a given trigger.
type EntryPolicy struct {
	// DefaultStartLevel applies when no mapping matches the trigger.
	DefaultStartLevel ale.LayerID

	// CarryCurrentLevel keeps the pre-switch level (clamped) instead of
	// DefaultStartLevel when no mapping matches. Used by contexts that are
	// musically continuous with their parent.
	CarryCurrentLevel bool

	TriggerMappings []TriggerMapping
}

// ResolveStartLevel returns the level this context starts at when entered
// via trigger, given the level that was playing before the switch.
func (p EntryPolicy) ResolveStartLevel(trigger string, current ale.LayerID) ale.LayerID {
	for _, m := range p.TriggerMappings {
		if m.Trigger == trigger && m.StartLevel != nil {
			return *m.StartLevel
		}
	}
	if p.CarryCurrentLevel {
		return current
	}
	return p.DefaultStartLevel
}

// ResolveTransition returns the transition profile id mapped to trigger, or
// "" when the default profile should be used.
func (p EntryPolicy) ResolveTransition(trigger string) string {
	for _, m := range p.TriggerMappings {
		if m.Trigger == trigger {
			return m.Transition
		}
	}
	return ""
}

// NarrativeArc pulls the level toward a target as a feature progresses.
// Early in the feature (progress below RampStart) rules roam freely within
// the context constraints; past RampStart the permitted deviation from
// TargetLevel shrinks linearly, reaching zero at progress 1.0 so features
// always end on their authored level.
type NarrativeArc struct {
	Enabled     bool
	TargetLevel ale.LayerID

	// RampStart is the progress fraction at which the arc starts clamping.
	// Values outside (0,1) are treated as 0.7.
	RampStart float64

	// ProgressSignal names the signal carrying feature progress 0..1.
	// Empty falls back to "feature_progress".
	ProgressSignal string
}

// ProgressSignalID returns the signal id the arc reads progress from.
func (n NarrativeArc) ProgressSignalID() string {
	if n.ProgressSignal == "" {
		return "feature_progress"
	}
	return n.ProgressSignal
}

// Apply clamps level according to the arc at the given progress, then to the
// context constraints. With the arc disabled only the constraints apply.
func (n NarrativeArc) Apply(level ale.LayerID, progress float64, c Constraints) ale.LayerID {
	if !n.Enabled {
		return c.Clamp(level)
	}
	ramp := n.RampStart
	if ramp <= 0 || ramp >= 1 {
		ramp = 0.7
	}
	if progress > 1 {
		progress = 1
	}
	if progress >= ramp {
		// Deviation allowance shrinks from the full range at ramp start
		// down to zero at the end of the feature.
		frac := (1 - progress) / (1 - ramp)
		maxDev := int(math.Round(frac * float64(ale.NumLevels-1)))
		lo, hi := int(n.TargetLevel)-maxDev, int(n.TargetLevel)+maxDev
		if lo < 0 {
			lo = 0
		}
		level = ale.ClampLevel(level, ale.LayerID(lo), ale.LayerID(hi))
	}
	return c.Clamp(level)
}

// Context is one named scenario. Immutable once registered.
type Context struct {
	ID             string
	AudioCharacter AudioCharacter
	Constraints    Constraints
	EntryPolicy    EntryPolicy
	NarrativeArc   NarrativeArc
}

// Hash returns a stable 32-bit identity for the context, suitable for the
// atomic published snapshot. FNV-1a over the id; contexts with distinct ids
// get distinct hashes for any sane content set.
func (c *Context) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(c.ID))
	return h.Sum32()
}
