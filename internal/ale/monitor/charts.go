package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	sqlite "github.com/banshee-data/adaptive.audio/internal/ale/storage/sqlite"
	"github.com/banshee-data/adaptive.audio/internal/httputil"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
)

// handleSessionChart renders a recorded session as an interactive HTML chart
// of committed level and transition progress over session time.
func (ws *WebServer) handleSessionChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.store == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "session recording disabled")
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "run_id required")
		return
	}

	session, err := ws.store.GetSession(runID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	snapshots, err := ws.store.GetSnapshots(runID, 0)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	changes, err := ws.store.GetLevelChanges(runID)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	html, err := RenderSessionChart(session, snapshots, changes)
	if err != nil {
		monitoring.Logf("monitor: session chart: %v", err)
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// RenderSessionChart builds the level timeline for one session as a
// standalone HTML document. Level change rows become a scatter overlay so
// rule firings stand out against the once-per-snapshot line. Shared with
// the offline report tool.
func RenderSessionChart(session *sqlite.Session, snapshots []*sqlite.Snapshot, changes []*sqlite.LevelChange) ([]byte, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:  "1200px",
			Height: "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Session %s", session.RunID),
			Subtitle: fmt.Sprintf("game %s, started %s", session.GameID, session.StartedAt.Format("2006-01-02 15:04:05")),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "time (s)",
			Type: "value",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "level",
			Type: "value",
			Max:  4,
			Min:  0,
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:  "slider",
			Start: 0,
			End:   100,
		}),
	)

	levelPoints := make([]opts.LineData, 0, len(snapshots))
	progressPoints := make([]opts.LineData, 0, len(snapshots))
	for _, s := range snapshots {
		sec := s.TMs / 1000
		levelPoints = append(levelPoints, opts.LineData{Value: []any{sec, int(s.CurrentLevel)}})
		progressPoints = append(progressPoints, opts.LineData{Value: []any{sec, s.TransitionProgress}})
	}
	line.AddSeries("level", levelPoints, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	line.AddSeries("transition progress", progressPoints)

	scatter := charts.NewScatter()
	changePoints := make([]opts.ScatterData, 0, len(changes))
	for _, c := range changes {
		label := c.Reason
		if c.RuleID != "" {
			label = c.RuleID
		}
		changePoints = append(changePoints, opts.ScatterData{
			Name:       label,
			Value:      []any{c.TMs / 1000, int(c.ToLevel)},
			SymbolSize: 10,
		})
	}
	scatter.AddSeries("level changes", changePoints)
	line.Overlap(scatter)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
