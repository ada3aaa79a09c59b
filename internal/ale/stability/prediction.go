package stability

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/adaptive.audio/internal/ale"
)

// Prediction is the output of trend extrapolation: where the level appears
// to be heading and how well the regression fits.
type Prediction struct {
	Level      ale.LayerID
	Confidence float64 // R² of the fit, 0..1
	SlopePerMs float64
	AtMs       float64
}

// PredictTrend fits an ordinary least-squares line to the level history
// within the last 10 seconds and extrapolates it over the configured
// horizon. Returns false when prediction is disabled, fewer than three
// samples are in the window, the fit is degenerate (all samples at one
// timestamp), the slope is near zero, or the fit's R² is below the
// confidence threshold. A confident result is cached as the last prediction;
// anything else clears the cache.
func (s *State) PredictTrend(current ale.LayerID, nowMs float64) (Prediction, bool) {
	p := &s.cfg.Prediction
	if !p.Enabled {
		s.hasLastPrediction = false
		return Prediction{}, false
	}

	n := 0
	for i := 0; i < s.historyFilled; i++ {
		sample := s.history[i]
		if nowMs-sample.atMs <= predictionWindowMs {
			s.predXs[n] = sample.atMs
			s.predYs[n] = float64(sample.level)
			n++
		}
	}
	if n < 3 {
		s.hasLastPrediction = false
		return Prediction{}, false
	}

	xs, ys := s.predXs[:n], s.predYs[:n]

	// All samples at the same timestamp would make the regression
	// denominator zero; report no trend instead of propagating NaN.
	if stat.Variance(xs, nil) == 0 {
		s.hasLastPrediction = false
		return Prediction{}, false
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.Abs(beta) < minTrendSlope {
		s.hasLastPrediction = false
		return Prediction{}, false
	}

	predicted := float64(current) + beta*p.HorizonMs
	rounded := int(math.Round(predicted))
	if rounded < 0 {
		rounded = 0
	}
	if rounded > int(ale.MaxLevel) {
		rounded = int(ale.MaxLevel)
	}

	r2 := stat.RSquaredFrom(estimates(xs, alpha, beta, s.predFit[:n]), ys, nil)
	if math.IsNaN(r2) || r2 < p.ConfidenceThreshold {
		s.hasLastPrediction = false
		return Prediction{}, false
	}

	pred := Prediction{
		Level:      ale.LayerID(rounded),
		Confidence: r2,
		SlopePerMs: beta,
		AtMs:       nowMs,
	}
	s.lastPrediction = pred
	s.hasLastPrediction = true
	return pred, true
}

// estimates fills dst with alpha + beta*x for each x.
func estimates(xs []float64, alpha, beta float64, dst []float64) []float64 {
	for i, x := range xs {
		dst[i] = alpha + beta*x
	}
	return dst[:len(xs)]
}

// LastPrediction returns the most recent confident prediction, if any.
func (s *State) LastPrediction() (Prediction, bool) {
	return s.lastPrediction, s.hasLastPrediction
}
