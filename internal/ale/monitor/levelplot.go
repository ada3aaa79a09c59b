package monitor

import (
	"fmt"
	"io"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/adaptive.audio/internal/httputil"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
)

// handleHistoryPNG renders the in-memory level history as a static PNG.
// Useful for quick captures without a browser session.
func (ws *WebServer) handleHistoryPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ws.stateMu.Lock()
	samples := make([]levelSample, len(ws.history))
	copy(samples, ws.history)
	ws.stateMu.Unlock()

	if len(samples) == 0 {
		httputil.WriteJSONError(w, http.StatusNotFound, "no history recorded yet")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := renderLevelHistory(samples, w); err != nil {
		monitoring.Logf("monitor: history plot: %v", err)
	}
}

// renderLevelHistory plots committed level and transition progress against
// engine time and writes the PNG to w.
func renderLevelHistory(samples []levelSample, w io.Writer) error {
	p := plot.New()
	p.Title.Text = "Level History"
	p.X.Label.Text = "Engine Time (s)"
	p.Y.Label.Text = "Level"
	p.Y.Min = 0
	p.Y.Max = 4.5
	p.Add(plotter.NewGrid())

	levelPts := make(plotter.XYs, len(samples))
	progressPts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		sec := s.TMs / 1000
		levelPts[i].X = sec
		levelPts[i].Y = s.Level
		progressPts[i].X = sec
		progressPts[i].Y = s.Progress
	}

	levelLine, err := plotter.NewLine(levelPts)
	if err != nil {
		return fmt.Errorf("failed to create level line: %w", err)
	}
	levelLine.StepStyle = plotter.PostStep
	levelLine.Width = vg.Points(1.5)
	p.Add(levelLine)
	p.Legend.Add("level", levelLine)

	progressLine, err := plotter.NewLine(progressPts)
	if err != nil {
		return fmt.Errorf("failed to create progress line: %w", err)
	}
	progressLine.Width = vg.Points(1)
	progressLine.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
	p.Add(progressLine)
	p.Legend.Add("transition progress", progressLine)

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}
