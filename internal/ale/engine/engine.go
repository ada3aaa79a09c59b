// Package engine contains the adaptive layer engine: the per-tick
// orchestration loop that turns telemetry, rules and stability gating into
// musically coherent layer changes.
//
// Exactly two logical execution contexts touch an Engine: a control thread
// that sends commands and polls state through the Channel, and the audio
// thread that calls Tick once per audio block. Tick is a pure state
// transition of (state, deltaMs, commands) — it never blocks, never waits on
// I/O and performs no allocation beyond the published snapshot.
//
// UpdateRule/RemoveRule commands are accepted and logged but deliberately do
// not touch the live rule registry; live rule editing goes through SwapRules,
// which replaces the whole registry at a tick boundary via an atomic pointer.
package engine

import (
	"sync/atomic"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/contexts"
	"github.com/banshee-data/adaptive.audio/internal/ale/rules"
	"github.com/banshee-data/adaptive.audio/internal/ale/signals"
	"github.com/banshee-data/adaptive.audio/internal/ale/stability"
	"github.com/banshee-data/adaptive.audio/internal/ale/transition"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
)

// initialLevel is the level the engine starts at and returns to on reset.
const initialLevel ale.LayerID = 1

// decayDownProfile is the transition used when decay steps the level down;
// upward decay (baseline above current) uses the default profile.
const decayDownProfile = "downshift_smooth"

// Config wires an Engine's collaborators. Registries are read-only for the
// engine's lifetime except Rules, which may be replaced via SwapRules.
type Config struct {
	Contexts    *contexts.Registry
	Rules       *rules.Registry
	Transitions *transition.Registry // nil takes the builtin set
	Stability   stability.Config
	Channel     *Channel   // nil creates one
	Published   *Published // nil creates one
}

// Engine is the decision core. All fields below the channel are owned by
// the audio thread and must only be touched inside Tick.
type Engine struct {
	contexts    *contexts.Registry
	rules       atomic.Pointer[rules.Registry]
	transitions *transition.Registry
	channel     *Channel
	published   *Published
	counters    *monitoring.Counters

	currentTimeMs float64
	beatPosition  float64

	currentContext *contexts.Context
	currentLevel   ale.LayerID
	active         *transition.Active

	playing        bool
	manualOverride bool
	lastFiredRule  string

	sig     *signals.Signals
	prevSig *signals.Signals
	held    *rules.HeldStates
	stab    *stability.State

	volumes ale.LayerVolumes
}

// New builds an engine in its initial state: level 1, no context, playing.
func New(cfg Config) *Engine {
	if cfg.Transitions == nil {
		cfg.Transitions = transition.WithBuiltins()
	}
	if cfg.Channel == nil {
		cfg.Channel = NewChannel(nil)
	}
	if cfg.Published == nil {
		cfg.Published = &Published{}
	}
	e := &Engine{
		contexts:     cfg.Contexts,
		transitions:  cfg.Transitions,
		channel:      cfg.Channel,
		published:    cfg.Published,
		counters:     cfg.Channel.counters,
		currentLevel: initialLevel,
		playing:      true,
		sig:          signals.New(),
		prevSig:      signals.New(),
		held:         rules.NewHeldStates(),
		stab:         stability.NewState(cfg.Stability),
	}
	e.rules.Store(cfg.Rules)
	return e
}

// Channel returns the control-side handle.
func (e *Engine) Channel() *Channel { return e.channel }

// Published returns the atomic mirror of the engine's headline fields.
func (e *Engine) Published() *Published { return e.published }

// SwapRules atomically replaces the rule registry. Safe to call from the
// control thread; the engine picks the new set up at its next tick.
func (e *Engine) SwapRules(r *rules.Registry) {
	e.rules.Store(r)
}

// Tick runs one engine cycle and returns the per-layer output volumes.
// deltaMs is derived from the audio block size by the caller; the engine
// keeps no clock of its own. Audio thread only.
func (e *Engine) Tick(deltaMs float64) ale.LayerVolumes {
	ruleset := e.rules.Load()

	// 1. Drain and apply all pending commands, in arrival order.
	for {
		cmd, ok := e.channel.popCommand()
		if !ok {
			break
		}
		e.applyCommand(cmd)
	}

	// 2. Advance the musical clock. The beat position free-runs and never
	// wraps; sync computations use modulo.
	e.currentTimeMs += deltaMs
	e.beatPosition += deltaMs / e.audioCharacter().BeatDurationMs()

	// 3. Recompute derived signals.
	e.sig.UpdateDerived("momentum")

	// 4. Tick stability; decay may start its own transition.
	e.stab.UpdateMomentum(float64(e.sig.Momentum()))
	e.stab.PredictTrend(e.currentLevel, e.currentTimeMs)
	e.tickDecay(deltaMs)

	// 5. Rule evaluation, gated on playing and no manual override.
	if e.playing && !e.manualOverride {
		e.evaluateRules(ruleset)
	}

	// 6. Advance the active transition; commit on completion.
	if e.active != nil {
		e.active.Tick(e.currentTimeMs)
		if e.active.IsComplete() {
			e.currentLevel = e.active.To
			e.active = nil
		}
	}

	// 7. Per-layer output volumes.
	e.computeVolumes()

	// 8. Publish the snapshot, best-effort.
	e.publish()

	// 9. Remember this tick's signals for next tick's edge detection.
	e.prevSig.CopyFrom(e.sig)

	return e.volumes
}

// audioCharacter returns the current context's timing, or the default
// 120 BPM 4/4 when no context is active.
func (e *Engine) audioCharacter() contexts.AudioCharacter {
	if e.currentContext != nil {
		return e.currentContext.AudioCharacter
	}
	return contexts.AudioCharacter{}
}

// constraints returns the current context's level range, or the full range.
func (e *Engine) constraints() contexts.Constraints {
	if e.currentContext != nil {
		return e.currentContext.Constraints
	}
	return contexts.Constraints{MinLevel: 0, MaxLevel: ale.MaxLevel}
}

// contextID returns the active context id, "" when none.
func (e *Engine) contextID() string {
	if e.currentContext == nil {
		return ""
	}
	return e.currentContext.ID
}

// tickDecay asks the decay mechanism for a step toward baseline and starts
// the corresponding transition. Decay respects the playing flag and manual
// override like rules do, and never interrupts an in-flight transition.
func (e *Engine) tickDecay(deltaMs float64) {
	if !e.playing || e.manualOverride || e.active != nil {
		return
	}
	next, stepped := e.stab.CalculateDecay(e.currentLevel, e.currentTimeMs, deltaMs)
	next = e.constraints().Clamp(next)
	if !stepped || next == e.currentLevel {
		return
	}
	profileID := transition.DefaultProfileID
	if next < e.currentLevel {
		profileID = decayDownProfile
	}
	e.startTransition(next, profileID)
	e.stab.RecordLevelChange(next, e.currentTimeMs)
	monitoring.Debugf("ale: decay step %d -> %d at t=%.0fms", e.currentLevel, next, e.currentTimeMs)
}

// evaluateRules finds the best matching rule and, if stability allows it,
// fires its action. A refused rule is a normal no-op for this cycle.
func (e *Engine) evaluateRules(ruleset *rules.Registry) {
	rule := ruleset.FindMatch(e.contextID(), e.sig, e.prevSig, e.held, e.currentTimeMs)
	if rule == nil {
		return
	}
	if !e.stab.CanChangeLevel(rule.ID, rule.RequiresHoldExpired, e.currentTimeMs) {
		return
	}

	cons := e.constraints()
	proposed := rule.Action.Apply(e.currentLevel, cons.MinLevel, cons.MaxLevel)
	if e.currentContext != nil {
		arc := e.currentContext.NarrativeArc
		progress := float64(e.sig.Get(arc.ProgressSignalID()))
		proposed = arc.Apply(proposed, progress, cons)
	}
	if proposed == e.currentLevel {
		return
	}
	// A transition already heading to proposed must be left to commit;
	// restarting it every matching tick would reset its clock forever.
	if e.active != nil && e.active.To == proposed {
		return
	}

	// The change is happening: transition plus all stability side effects,
	// atomically from the rest of the system's point of view.
	e.startTransition(proposed, rule.Transition)
	e.stab.StartGlobalCooldown(e.currentTimeMs)
	if rule.CooldownMs > 0 {
		e.stab.StartRuleCooldown(rule.ID, rule.CooldownMs, e.currentTimeMs)
	}
	if rule.HoldMs > 0 {
		e.stab.StartHold(proposed, rule.HoldMs, e.currentTimeMs)
	}
	e.stab.RecordLevelChange(proposed, e.currentTimeMs)
	e.lastFiredRule = rule.ID
	monitoring.Debugf("ale: rule %q fired %d -> %d", rule.ID, e.currentLevel, proposed)
}

// startTransition replaces any in-flight transition outright; there is no
// queueing and no fade-out of the fade.
func (e *Engine) startTransition(to ale.LayerID, profileID string) {
	// currentLevel is still the committed from-level: commits only happen
	// when a transition completes, and a replaced transition never commits.
	from := e.currentLevel
	profile := e.transitions.Get(profileID)
	ac := e.audioCharacter()
	delay := transition.CalculateSyncDelay(
		profile.Sync,
		e.beatPosition,
		ac.BeatsPerBar(),
		ac.BeatDurationMs(),
		profile.MaxWaitMs,
		profile.CustomGridBeats,
	)
	e.active = transition.Start(profile, from, to, e.currentTimeMs, delay)
}

// computeVolumes fills the per-layer output for this tick.
func (e *Engine) computeVolumes() {
	e.volumes.Reset()
	if e.active != nil {
		e.volumes.Set(e.active.From, e.active.FromVolume())
		e.volumes.Set(e.active.To, e.active.ToVolume())
		return
	}
	e.volumes.Set(e.currentLevel, 1.0)
}

// publish constructs this tick's snapshot and pushes it, then refreshes the
// atomic mirror. The snapshot (and its signal copy) is the one allocation
// per tick.
func (e *Engine) publish() {
	s := &State{
		ContextID:          e.contextID(),
		CurrentLevel:       e.currentLevel,
		Playing:            e.playing,
		ManualOverride:     e.manualOverride,
		LastFiredRule:      e.lastFiredRule,
		HoldRemainingMs:    e.stab.HoldRemainingMs(e.currentTimeMs),
		Signals:            e.sig.Clone(),
		BeatPosition:       e.beatPosition,
		TimestampMs:        e.currentTimeMs,
		TransitionProgress: 0,
	}
	if e.active != nil {
		s.TargetLevel = e.active.To
		s.HasTarget = true
		s.TransitionProgress = e.active.Progress()
	}
	e.channel.publishState(s)

	var hash uint32
	if e.currentContext != nil {
		hash = e.currentContext.Hash()
	}
	e.published.store(e.currentLevel, hash, e.playing, e.manualOverride)
	e.counters.Ticks.Add(1)
}
