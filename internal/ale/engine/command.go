package engine

import (
	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/rules"
	"github.com/banshee-data/adaptive.audio/internal/ale/signals"
	"github.com/banshee-data/adaptive.audio/internal/ale/stability"
)

// CommandKind tags the nine control operations the engine accepts.
type CommandKind uint8

const (
	// CmdUpdateSignals replaces the engine's signal snapshot.
	CmdUpdateSignals CommandKind = iota
	// CmdSwitchContext switches to a named context; unknown ids are ignored.
	CmdSwitchContext
	// CmdForceLevel sets manual override and transitions to the level.
	CmdForceLevel
	// CmdReleaseManualOverride clears the override flag only.
	CmdReleaseManualOverride
	// CmdSetPlaying pauses or resumes rule-driven behavior.
	CmdSetPlaying
	// CmdReset restores the engine to its initial state.
	CmdReset
	// CmdUpdateRule is accepted but only logged (see package doc).
	CmdUpdateRule
	// CmdRemoveRule is accepted but only logged (see package doc).
	CmdRemoveRule
	// CmdUpdateStability hot-swaps the stability tuning.
	CmdUpdateStability
)

// Command is one control operation. It is a plain value so pushing it onto
// the SPSC queue never allocates; the pointer fields carry the payloads that
// change ownership across the thread boundary.
type Command struct {
	Kind CommandKind

	Signals   *signals.Signals  // CmdUpdateSignals; ownership moves to the engine
	ContextID string            // CmdSwitchContext
	Trigger   string            // CmdSwitchContext
	Level     ale.LayerID       // CmdForceLevel
	Playing   bool              // CmdSetPlaying
	Rule      *rules.Rule       // CmdUpdateRule
	RuleID    string            // CmdRemoveRule
	Stability *stability.Config // CmdUpdateStability
}

// UpdateSignals builds a signal-replacement command. The engine takes
// ownership of s; the caller must not touch it afterwards.
func UpdateSignals(s *signals.Signals) Command {
	return Command{Kind: CmdUpdateSignals, Signals: s}
}

// SwitchContext builds a context-switch command. trigger describes how the
// context was entered ("feature_start", "retrigger", ...) and selects the
// entry mapping.
func SwitchContext(contextID, trigger string) Command {
	return Command{Kind: CmdSwitchContext, ContextID: contextID, Trigger: trigger}
}

// ForceLevel builds a manual-override command.
func ForceLevel(level ale.LayerID) Command {
	return Command{Kind: CmdForceLevel, Level: level}
}

// ReleaseManualOverride builds a command clearing the override flag. It does
// not itself trigger any transition.
func ReleaseManualOverride() Command {
	return Command{Kind: CmdReleaseManualOverride}
}

// Pause builds a command clearing the playing flag.
func Pause() Command {
	return Command{Kind: CmdSetPlaying, Playing: false}
}

// Resume builds a command setting the playing flag.
func Resume() Command {
	return Command{Kind: CmdSetPlaying, Playing: true}
}

// Reset builds a full engine reset command.
func Reset() Command {
	return Command{Kind: CmdReset}
}

// UpdateRule builds a rule-update command. The live registry is not mutated
// by this command; see the package doc for the swap path.
func UpdateRule(r *rules.Rule) Command {
	return Command{Kind: CmdUpdateRule, Rule: r}
}

// RemoveRule builds a rule-removal command. Logged only, like UpdateRule.
func RemoveRule(ruleID string) Command {
	return Command{Kind: CmdRemoveRule, RuleID: ruleID}
}

// UpdateStability builds a tuning hot-swap command.
func UpdateStability(cfg stability.Config) Command {
	return Command{Kind: CmdUpdateStability, Stability: &cfg}
}
