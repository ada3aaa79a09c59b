package rules

import (
	"strconv"

	"github.com/banshee-data/adaptive.audio/internal/ale/signals"
)

// Op is a comparison operator for threshold conditions.
type Op uint8

const (
	OpGT Op = iota
	OpGTE
	OpLT
	OpLTE
)

func (o Op) compare(v, threshold float32) bool {
	switch o {
	case OpGT:
		return v > threshold
	case OpGTE:
		return v >= threshold
	case OpLT:
		return v < threshold
	case OpLTE:
		return v <= threshold
	}
	return false
}

// String returns the operator as authored in content files.
func (o Op) String() string {
	switch o {
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	}
	return "?"
}

// CondKind selects the condition shape.
type CondKind uint8

const (
	// CondThreshold compares a signal against a value.
	CondThreshold CondKind = iota
	// CondRisingEdge fires on the tick a signal crosses Value upward.
	CondRisingEdge
	// CondFallingEdge fires on the tick a signal crosses Value downward.
	CondFallingEdge
	// CondRange requires Low <= signal <= High.
	CondRange
	// CondSustained requires the first sub-condition to hold continuously
	// for SustainMs. Uses HeldStates scratch across ticks.
	CondSustained
	// CondAll requires every sub-condition.
	CondAll
	// CondAny requires at least one sub-condition.
	CondAny
)

// Condition is a recursive predicate over the signal snapshot. Edge and
// sustained conditions additionally consult the previous tick's snapshot and
// the HeldStates scratch, which is why evaluation threads both through.
type Condition struct {
	Kind   CondKind
	Signal string
	Op     Op
	Value  float32

	// CondRange bounds, inclusive.
	Low, High float32

	// CondSustained duration; the wrapped condition is Sub[0].
	SustainMs float64

	// Sub holds children for CondSustained/CondAll/CondAny.
	Sub []Condition
}

// Eval evaluates the condition. key scopes HeldStates entries so the same
// condition shape in two rules never shares sustain timers; callers pass the
// rule id and Eval extends it per sub-condition.
func (c *Condition) Eval(key string, sig, prev *signals.Signals, held *HeldStates, nowMs float64) bool {
	switch c.Kind {
	case CondThreshold:
		return c.Op.compare(sig.Get(c.Signal), c.Value)

	case CondRisingEdge:
		if prev == nil {
			return false
		}
		return prev.Get(c.Signal) < c.Value && sig.Get(c.Signal) >= c.Value

	case CondFallingEdge:
		if prev == nil {
			return false
		}
		return prev.Get(c.Signal) > c.Value && sig.Get(c.Signal) <= c.Value

	case CondRange:
		v := sig.Get(c.Signal)
		return v >= c.Low && v <= c.High

	case CondSustained:
		if len(c.Sub) == 0 {
			return false
		}
		inner := c.Sub[0].Eval(key+"/0", sig, prev, held, nowMs)
		return held.track(key, inner, c.SustainMs, nowMs)

	case CondAll:
		for i := range c.Sub {
			if !c.Sub[i].Eval(key+"/"+strconv.Itoa(i), sig, prev, held, nowMs) {
				return false
			}
		}
		return len(c.Sub) > 0

	case CondAny:
		for i := range c.Sub {
			if c.Sub[i].Eval(key+"/"+strconv.Itoa(i), sig, prev, held, nowMs) {
				return true
			}
		}
		return false
	}
	return false
}
