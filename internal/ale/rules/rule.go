// Package rules implements the trigger layer: declarative condition→action
// mappings evaluated against the signal snapshot every tick. Rules propose
// level changes; the stability engine decides whether they are allowed to
// land.
package rules

import (
	"github.com/banshee-data/adaptive.audio/internal/ale"
)

// ActionKind selects how an action derives the proposed level.
type ActionKind uint8

const (
	// ActionSet proposes an absolute level.
	ActionSet ActionKind = iota
	// ActionShift proposes the current level offset by Amount (signed).
	ActionShift
	// ActionToMax proposes the context's maximum level.
	ActionToMax
	// ActionToMin proposes the context's minimum level.
	ActionToMin
)

// Action maps the current level to a proposed level within a context's
// constraint range.
type Action struct {
	Kind   ActionKind
	Level  ale.LayerID // ActionSet
	Amount int         // ActionShift, signed
}

// Apply resolves the action against the current level and clamps the result
// into [min, max].
func (a Action) Apply(current, min, max ale.LayerID) ale.LayerID {
	var proposed int
	switch a.Kind {
	case ActionSet:
		proposed = int(a.Level)
	case ActionShift:
		proposed = int(current) + a.Amount
	case ActionToMax:
		proposed = int(max)
	case ActionToMin:
		proposed = int(min)
	default:
		proposed = int(current)
	}
	if proposed < 0 {
		proposed = 0
	}
	return ale.ClampLevel(ale.LayerID(proposed), min, max)
}

// Rule is one declarative trigger. Immutable once registered.
type Rule struct {
	ID string

	// ContextID scopes the rule to one context; empty means the rule applies
	// in every context.
	ContextID string

	Condition Condition
	Action    Action

	// Transition names the profile used when this rule fires; empty uses the
	// registry default.
	Transition string

	// CooldownMs suppresses this rule for the given window after it fires.
	// Zero disables the per-rule cooldown.
	CooldownMs float64

	// HoldMs locks the newly reached level against hold-respecting rules.
	// Zero starts no hold.
	HoldMs float64

	// RequiresHoldExpired makes the rule wait out any active hold before it
	// may fire. Escalation rules usually set this false so a big moment can
	// still punch through a hold.
	RequiresHoldExpired bool

	// Priority breaks ties when several rules match in the same tick; higher
	// wins, authored order breaks remaining ties.
	Priority int
}
