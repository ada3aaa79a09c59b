package engine

import (
	"github.com/banshee-data/adaptive.audio/internal/ale/transition"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
)

// applyCommand executes one drained control command. Every failure mode in
// here is a silent no-op: this runs inside the audio callback and has
// nowhere to report an error to.
func (e *Engine) applyCommand(cmd Command) {
	switch cmd.Kind {
	case CmdUpdateSignals:
		if cmd.Signals != nil {
			cmd.Signals.InheritDerived(e.sig)
			e.sig = cmd.Signals
		}

	case CmdSwitchContext:
		e.switchContext(cmd.ContextID, cmd.Trigger)

	case CmdForceLevel:
		e.manualOverride = true
		cons := e.constraints()
		target := cons.Clamp(cmd.Level)
		if target != e.currentLevel || e.active != nil {
			e.startTransition(target, transition.DefaultProfileID)
			e.stab.RecordLevelChange(target, e.currentTimeMs)
		}
		monitoring.Debugf("ale: force level %d (clamped %d)", cmd.Level, target)

	case CmdReleaseManualOverride:
		// Flag only; rules take over again from whatever level is playing.
		e.manualOverride = false

	case CmdSetPlaying:
		e.playing = cmd.Playing

	case CmdReset:
		e.reset()

	case CmdUpdateRule:
		// Accepted but not applied to the live registry; rule editing goes
		// through SwapRules on the control side.
		if cmd.Rule != nil {
			monitoring.Debugf("ale: UpdateRule %q ignored (use registry swap)", cmd.Rule.ID)
		}

	case CmdRemoveRule:
		monitoring.Debugf("ale: RemoveRule %q ignored (use registry swap)", cmd.RuleID)

	case CmdUpdateStability:
		if cmd.Stability != nil {
			e.stab.ApplyConfig(*cmd.Stability)
			monitoring.Debugf("ale: stability config v%d applied", cmd.Stability.Version)
		}
	}
}

// switchContext looks up and enters a context. Unknown ids leave the engine
// on its current context; that is the contract, not an error.
func (e *Engine) switchContext(contextID, trigger string) {
	ctx := e.contexts.Get(contextID)
	if ctx == nil {
		monitoring.Debugf("ale: switch to unknown context %q ignored", contextID)
		return
	}

	// Entering a context resets every hysteresis mechanism and the sustain
	// scratch; the new scene starts clean.
	e.stab.Reset()
	e.held.Clear()
	e.lastFiredRule = ""

	start := ctx.Constraints.Clamp(ctx.EntryPolicy.ResolveStartLevel(trigger, e.currentLevel))
	profileID := ctx.EntryPolicy.ResolveTransition(trigger)

	prev := e.currentContext
	e.currentContext = ctx

	if start != e.currentLevel || e.active != nil {
		e.startTransition(start, profileID)
		e.stab.RecordLevelChange(start, e.currentTimeMs)
	}
	if prev == nil {
		monitoring.Debugf("ale: entered context %q at level %d", contextID, start)
	} else {
		monitoring.Debugf("ale: context %q -> %q, level %d", prev.ID, contextID, start)
	}
}

// reset restores all fields to their initial values: level 1, no context,
// cleared stability and history, playing.
func (e *Engine) reset() {
	e.currentTimeMs = 0
	e.beatPosition = 0
	e.currentContext = nil
	e.currentLevel = initialLevel
	e.active = nil
	e.playing = true
	e.manualOverride = false
	e.lastFiredRule = ""
	e.sig.Clear()
	e.prevSig.Clear()
	e.held.Clear()
	e.stab.Reset()
	e.volumes.Reset()
	monitoring.Debugf("ale: engine reset")
}
