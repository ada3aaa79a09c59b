package transition

import "github.com/banshee-data/adaptive.audio/internal/ale"

// Phase is the stage an active transition is in. Phases advance strictly
// forward; there is no path back.
type Phase uint8

const (
	PhaseWaitingForSync Phase = iota
	PhaseFadeOut
	PhaseCrossfade
	PhaseFadeIn
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseWaitingForSync:
		return "waiting_for_sync"
	case PhaseFadeOut:
		return "fade_out"
	case PhaseCrossfade:
		return "crossfade"
	case PhaseFadeIn:
		return "fade_in"
	case PhaseComplete:
		return "complete"
	}
	return "unknown"
}

// During the overlap the outgoing layer sits at this gain and the incoming
// layer rises from it, so the handover never drops to silence.
const crossfadeFloor = 0.3

// Active is one in-flight transition: a profile bound to a from/to level
// pair, created at a specific engine timestamp with a precomputed sync
// delay. At most one Active exists at a time; a new request replaces the old
// one outright.
type Active struct {
	Profile *Profile
	From    ale.LayerID
	To      ale.LayerID

	createdAtMs float64
	syncDelayMs float64

	// startAtMs is the post-sync clock origin; phase boundaries are measured
	// from it, not from createdAtMs.
	started   bool
	startAtMs float64

	phase         Phase
	phaseProgress float64 // 0..1 within the current phase
}

// Start creates a transition at nowMs with the given precomputed sync
// delay. A zero delay starts directly in FadeOut.
func Start(p *Profile, from, to ale.LayerID, nowMs, syncDelayMs float64) *Active {
	a := &Active{
		Profile:     p,
		From:        from,
		To:          to,
		createdAtMs: nowMs,
		syncDelayMs: syncDelayMs,
	}
	if syncDelayMs <= 0 {
		a.started = true
		a.startAtMs = nowMs
		a.phase = PhaseFadeOut
	} else {
		a.phase = PhaseWaitingForSync
	}
	a.Tick(nowMs)
	return a
}

// Tick advances the state machine to engine time nowMs. Safe to call with a
// time equal to the creation time; time never moves backwards in the engine.
func (a *Active) Tick(nowMs float64) {
	if !a.started {
		if nowMs-a.createdAtMs < a.syncDelayMs {
			a.phase = PhaseWaitingForSync
			a.phaseProgress = 0
			return
		}
		a.started = true
		a.startAtMs = a.createdAtMs + a.syncDelayMs
	}

	t := nowMs - a.startAtMs
	dOut := a.Profile.FadeOut.DurationMs
	overlap := a.Profile.OverlapMs
	dIn := a.Profile.FadeIn.DurationMs

	switch {
	case t < dOut:
		a.phase = PhaseFadeOut
		a.phaseProgress = t / dOut
	case t < dOut+overlap:
		a.phase = PhaseCrossfade
		a.phaseProgress = (t - dOut) / overlap
	case t < dOut+overlap+dIn:
		a.phase = PhaseFadeIn
		a.phaseProgress = (t - dOut - overlap) / dIn
	default:
		a.phase = PhaseComplete
		a.phaseProgress = 1
	}
}

// Phase returns the current phase.
func (a *Active) Phase() Phase { return a.phase }

// Started reports whether the sync wait is over.
func (a *Active) Started() bool { return a.started }

// SyncDelayMs returns the computed sync delay.
func (a *Active) SyncDelayMs() float64 { return a.syncDelayMs }

// PhaseProgress returns progress 0..1 within the current phase.
func (a *Active) PhaseProgress() float64 { return a.phaseProgress }

// IsComplete reports whether the crossfade has fully run its course. The
// engine commits the target level and discards the transition when this
// turns true.
func (a *Active) IsComplete() bool { return a.phase == PhaseComplete }

// Progress returns overall progress 0..1 across the whole post-sync
// duration, for the published state snapshot. Still 0 while waiting for
// sync.
func (a *Active) Progress() float64 {
	if !a.started {
		return 0
	}
	total := a.Profile.TotalDurationMs()
	if total <= 0 {
		return 1
	}
	p := (a.lastTickTime()) / total
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// lastTickTime reconstructs elapsed-since-start from the phase state so
// Progress does not need the engine clock passed in again.
func (a *Active) lastTickTime() float64 {
	dOut := a.Profile.FadeOut.DurationMs
	overlap := a.Profile.OverlapMs
	dIn := a.Profile.FadeIn.DurationMs
	switch a.phase {
	case PhaseFadeOut:
		return a.phaseProgress * dOut
	case PhaseCrossfade:
		return dOut + a.phaseProgress*overlap
	case PhaseFadeIn:
		return dOut + overlap + a.phaseProgress*dIn
	case PhaseComplete:
		return dOut + overlap + dIn
	}
	return 0
}

// duckGain returns the gain multiplier applied during the overlap.
func (a *Active) duckGain() float32 {
	if a.phase == PhaseCrossfade && a.Profile.Ducking.Enabled {
		return 1 - a.Profile.Ducking.Amount
	}
	return 1
}

// FromVolume returns the outgoing layer's volume for the current phase.
func (a *Active) FromVolume() float32 {
	switch a.phase {
	case PhaseWaitingForSync:
		return 1
	case PhaseFadeOut:
		return float32(1 - a.Profile.FadeOut.Curve.Apply(a.phaseProgress))
	case PhaseCrossfade:
		return float32(crossfadeFloor*(1-a.phaseProgress)) * a.duckGain()
	}
	return 0
}

// ToVolume returns the incoming layer's volume for the current phase.
func (a *Active) ToVolume() float32 {
	switch a.phase {
	case PhaseCrossfade:
		return float32(crossfadeFloor+(1-crossfadeFloor)*a.phaseProgress) * a.duckGain()
	case PhaseFadeIn:
		return float32(a.Profile.FadeIn.Curve.Apply(a.phaseProgress))
	case PhaseComplete:
		return 1
	}
	return 0
}
