package transition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Every curve must pin its endpoints: f(0)=0 and f(1)=1.
func TestCurveBoundaries(t *testing.T) {
	t.Parallel()

	for _, c := range AllCurves() {
		assert.InDelta(t, 0.0, c.Apply(0), 0.01, "%s at t=0", c)
		assert.InDelta(t, 1.0, c.Apply(1), 0.01, "%s at t=1", c)
	}
}

func TestCurveClampsInput(t *testing.T) {
	t.Parallel()

	for _, c := range AllCurves() {
		assert.Equal(t, 0.0, c.Apply(-0.5), "%s below range", c)
		assert.Equal(t, 1.0, c.Apply(1.5), "%s above range", c)
	}
}

func TestCurveMonotonic(t *testing.T) {
	t.Parallel()

	for _, c := range AllCurves() {
		prev := c.Apply(0)
		for step := 1; step <= 100; step++ {
			v := c.Apply(float64(step) / 100)
			if v < prev-1e-9 {
				t.Fatalf("%s not monotonic at t=%.2f: %f < %f", c, float64(step)/100, v, prev)
			}
			prev = v
		}
	}
}

func TestCurveShapes(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.5, Linear.Apply(0.5), 1e-9)
	assert.InDelta(t, 0.25, EaseInQuad.Apply(0.5), 1e-9)
	assert.InDelta(t, 0.75, EaseOutQuad.Apply(0.5), 1e-9)
	assert.InDelta(t, 0.125, EaseInCubic.Apply(0.5), 1e-9)
	assert.InDelta(t, 0.875, EaseOutCubic.Apply(0.5), 1e-9)
	assert.InDelta(t, 0.5, EaseInOutQuad.Apply(0.5), 1e-9)
	assert.InDelta(t, 0.5, EaseInOutCubic.Apply(0.5), 1e-9)
	assert.InDelta(t, 0.5, SCurve.Apply(0.5), 1e-9)
	assert.InDelta(t, math.Pow(2, -5), EaseInExpo.Apply(0.5), 1e-9)
	assert.InDelta(t, 1-math.Pow(2, -5), EaseOutExpo.Apply(0.5), 1e-9)
}

func TestParseCurveRoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range AllCurves() {
		assert.Equal(t, c, ParseCurve(c.String()))
	}
	assert.Equal(t, Linear, ParseCurve("no_such_curve"))
}
