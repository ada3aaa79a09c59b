// Package transition implements the musically-synced crossfade subsystem:
// fade curves, sync quantization, transition profiles and the active
// transition state machine the engine drives once per tick.
package transition

import "math"

// FadeCurve selects the shape applied to fade progress. Every curve maps
// [0,1]→[0,1] with f(0)=0 and f(1)=1.
type FadeCurve uint8

const (
	Linear FadeCurve = iota
	EaseInQuad
	EaseOutQuad
	EaseInOutQuad
	EaseInCubic
	EaseOutCubic
	EaseInOutCubic
	EaseInExpo
	EaseOutExpo
	SCurve
)

// curveNames is the authored spelling used in content files and logs.
var curveNames = map[FadeCurve]string{
	Linear:         "linear",
	EaseInQuad:     "ease_in_quad",
	EaseOutQuad:    "ease_out_quad",
	EaseInOutQuad:  "ease_in_out_quad",
	EaseInCubic:    "ease_in_cubic",
	EaseOutCubic:   "ease_out_cubic",
	EaseInOutCubic: "ease_in_out_cubic",
	EaseInExpo:     "ease_in_expo",
	EaseOutExpo:    "ease_out_expo",
	SCurve:         "s_curve",
}

func (c FadeCurve) String() string {
	if n, ok := curveNames[c]; ok {
		return n
	}
	return "linear"
}

// ParseCurve resolves an authored curve name; unknown names fall back to
// linear so a typo in a content file degrades rather than fails.
func ParseCurve(name string) FadeCurve {
	for c, n := range curveNames {
		if n == name {
			return c
		}
	}
	return Linear
}

// Apply evaluates the curve at t, clamping t to [0,1] first.
func (c FadeCurve) Apply(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch c {
	case Linear:
		return t
	case EaseInQuad:
		return t * t
	case EaseOutQuad:
		return 1 - (1-t)*(1-t)
	case EaseInOutQuad:
		if t < 0.5 {
			return 2 * t * t
		}
		u := -2*t + 2
		return 1 - u*u/2
	case EaseInCubic:
		return t * t * t
	case EaseOutCubic:
		u := 1 - t
		return 1 - u*u*u
	case EaseInOutCubic:
		if t < 0.5 {
			return 4 * t * t * t
		}
		u := -2*t + 2
		return 1 - u*u*u/2
	case EaseInExpo:
		return math.Pow(2, 10*t-10)
	case EaseOutExpo:
		return 1 - math.Pow(2, -10*t)
	case SCurve:
		return (1 - math.Cos(math.Pi*t)) / 2
	}
	return t
}

// AllCurves lists every variant, in declaration order. Used by tests and the
// content loader's validation pass.
func AllCurves() []FadeCurve {
	return []FadeCurve{
		Linear, EaseInQuad, EaseOutQuad, EaseInOutQuad,
		EaseInCubic, EaseOutCubic, EaseInOutCubic,
		EaseInExpo, EaseOutExpo, SCurve,
	}
}
