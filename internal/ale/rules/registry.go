package rules

import (
	"fmt"

	"github.com/banshee-data/adaptive.audio/internal/ale/signals"
)

// Registry holds the rule set. Read-only for the duration of a tick; live
// rule editing goes through a whole-registry swap on the engine's tick
// boundary, never in-place mutation.
type Registry struct {
	rules []*Rule
}

// NewRegistry builds a registry. Rule ids must be unique and non-empty.
func NewRegistry(rs ...*Rule) (*Registry, error) {
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if r.ID == "" {
			return nil, fmt.Errorf("rule with empty id")
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return &Registry{rules: rs}, nil
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rules)
}

// FindMatch returns the matching rule for the current context with the
// highest priority (authored order breaks ties), or nil when nothing
// matches. Evaluation may update sustain timers in held even when the
// overall rule does not match; that is the point of the scratch.
func (r *Registry) FindMatch(contextID string, sig, prev *signals.Signals, held *HeldStates, nowMs float64) *Rule {
	if r == nil {
		return nil
	}
	var best *Rule
	for _, rule := range r.rules {
		if rule.ContextID != "" && rule.ContextID != contextID {
			continue
		}
		if best != nil && rule.Priority <= best.Priority {
			// A later rule only displaces best with a strictly higher
			// priority, but its sustain timers must still advance.
			if !hasSustain(&rule.Condition) {
				continue
			}
		}
		if rule.Condition.Eval(rule.ID, sig, prev, held, nowMs) {
			if best == nil || rule.Priority > best.Priority {
				best = rule
			}
		}
	}
	return best
}

// hasSustain reports whether the condition tree contains a sustained node.
func hasSustain(c *Condition) bool {
	if c.Kind == CondSustained {
		return true
	}
	for i := range c.Sub {
		if hasSustain(&c.Sub[i]) {
			return true
		}
	}
	return false
}
