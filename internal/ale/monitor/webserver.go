// Package monitor provides the HTTP interface for observing and steering a
// running engine: JSON state and tuning endpoints, a WebSocket state feed,
// and rendered session charts.
//
// The monitor never touches the engine directly. Commands raised by HTTP
// handlers are queued on a channel the daemon forwards from its control
// loop, and state flows the other way via Publish.
package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/engine"
	"github.com/banshee-data/adaptive.audio/internal/ale/signals"
	sqlite "github.com/banshee-data/adaptive.audio/internal/ale/storage/sqlite"
	"github.com/banshee-data/adaptive.audio/internal/config"
	"github.com/banshee-data/adaptive.audio/internal/httputil"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
)

// historySize bounds the in-memory level history used by the PNG endpoint.
const historySize = 4096

// levelSample is one point of the in-memory level history.
type levelSample struct {
	TMs      float64
	Level    float64
	Progress float64
}

// WebServer handles the HTTP interface for monitoring the engine.
type WebServer struct {
	address   string
	published *engine.Published
	store     *sqlite.SessionStore
	server    *http.Server
	hub       *Hub

	// commands raised by handlers; the daemon forwards them to the engine.
	commands chan engine.Command

	tuningMu      sync.Mutex
	tuning        *config.TuningConfig
	tuningVersion uint32

	stateMu sync.Mutex
	latest  *engine.State
	history []levelSample
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address   string
	Published *engine.Published
	Store     *sqlite.SessionStore // nil disables the session endpoints
	Tuning    *config.TuningConfig
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) *WebServer {
	tuning := cfg.Tuning
	if tuning == nil {
		tuning = config.EmptyTuningConfig()
	}
	ws := &WebServer{
		address:   cfg.Address,
		published: cfg.Published,
		store:     cfg.Store,
		hub:       NewHub(),
		commands:  make(chan engine.Command, 64),
		tuning:    tuning,
		history:   make([]levelSample, 0, historySize),
	}
	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}
	return ws
}

// Commands returns the queue of control commands raised by HTTP handlers.
// The daemon drains it and forwards to the engine channel, which keeps the
// SPSC producer side single-threaded.
func (ws *WebServer) Commands() <-chan engine.Command { return ws.commands }

// Publish hands the monitor a fresh engine snapshot: it becomes the latest
// state, extends the level history and is broadcast to WebSocket clients.
func (ws *WebServer) Publish(st *engine.State) {
	if st == nil {
		return
	}
	ws.stateMu.Lock()
	ws.latest = st
	if len(ws.history) == historySize {
		copy(ws.history, ws.history[1:])
		ws.history = ws.history[:historySize-1]
	}
	ws.history = append(ws.history, levelSample{
		TMs:      st.TimestampMs,
		Level:    float64(st.CurrentLevel),
		Progress: st.TransitionProgress,
	})
	ws.stateMu.Unlock()

	ws.hub.BroadcastState(st)
}

// Start begins the HTTP server and the WebSocket hub, then blocks until ctx
// is cancelled and the server has shut down.
func (ws *WebServer) Start(ctx context.Context) error {
	go ws.hub.Run(ctx)

	go func() {
		monitoring.Logf("monitor: listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("monitor: server error: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("monitor: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitor: shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("monitor: force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/ale/state", ws.handleState)
	mux.HandleFunc("/api/ale/params", ws.handleParams)
	mux.HandleFunc("/api/ale/command", ws.handleCommand)
	mux.HandleFunc("/api/ale/sessions", ws.handleSessions)
	mux.HandleFunc("/api/ale/session/chart", ws.handleSessionChart)
	mux.HandleFunc("/api/ale/history.png", ws.handleHistoryPNG)
	mux.HandleFunc("/ws/state", ws.handleStateWS)

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{
		"status":            "ok",
		"ticks":             ws.published.Ticks(),
		"playing":           ws.published.Playing(),
		"commands_dropped":  monitoring.Default.CommandsDropped.Load(),
		"snapshots_dropped": monitoring.Default.SnapshotsDropped.Load(),
	})
}

// stateJSON is the wire shape of an engine snapshot.
type stateJSON struct {
	ContextID          string             `json:"context_id"`
	CurrentLevel       int                `json:"current_level"`
	TargetLevel        *int               `json:"target_level,omitempty"`
	TransitionProgress float64            `json:"transition_progress"`
	Playing            bool               `json:"playing"`
	ManualOverride     bool               `json:"manual_override"`
	LastFiredRule      string             `json:"last_fired_rule,omitempty"`
	HoldRemainingMs    float64            `json:"hold_remaining_ms"`
	BeatPosition       float64            `json:"beat_position"`
	TimestampMs        float64            `json:"timestamp_ms"`
	Signals            map[string]float32 `json:"signals"`
}

func toStateJSON(st *engine.State) stateJSON {
	out := stateJSON{
		ContextID:          st.ContextID,
		CurrentLevel:       int(st.CurrentLevel),
		TransitionProgress: st.TransitionProgress,
		Playing:            st.Playing,
		ManualOverride:     st.ManualOverride,
		LastFiredRule:      st.LastFiredRule,
		HoldRemainingMs:    st.HoldRemainingMs,
		BeatPosition:       st.BeatPosition,
		TimestampMs:        st.TimestampMs,
		Signals:            map[string]float32{},
	}
	if st.HasTarget {
		target := int(st.TargetLevel)
		out.TargetLevel = &target
	}
	if st.Signals != nil {
		st.Signals.Each(func(id string, v float32) { out.Signals[id] = v })
	}
	return out
}

// handleState returns the most recent engine snapshot.
func (ws *WebServer) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	ws.stateMu.Lock()
	st := ws.latest
	ws.stateMu.Unlock()
	if st == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "no state published yet")
		return
	}
	httputil.WriteJSONOK(w, toStateJSON(st))
}

// handleParams serves the live tuning: GET echoes it, POST merges a partial
// update, validates, and queues an UpdateStability command for the engine.
func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ws.tuningMu.Lock()
		cur := ws.tuning
		ws.tuningMu.Unlock()
		httputil.WriteJSONOK(w, cur)

	case http.MethodPost:
		var update config.TuningConfig
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}

		ws.tuningMu.Lock()
		merged := ws.tuning.Merge(&update)
		if err := merged.Validate(); err != nil {
			ws.tuningMu.Unlock()
			httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		ws.tuning = merged
		ws.tuningVersion++
		stab := merged.ToStability()
		stab.Version = ws.tuningVersion
		ws.tuningMu.Unlock()

		if !ws.queueCommand(engine.UpdateStability(stab)) {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "command queue full")
			return
		}
		httputil.WriteJSONOK(w, merged)

	default:
		httputil.MethodNotAllowed(w)
	}
}

// commandRequest is the POST body for /api/ale/command.
type commandRequest struct {
	Action    string             `json:"action"`
	ContextID string             `json:"context_id,omitempty"`
	Trigger   string             `json:"trigger,omitempty"`
	Level     int                `json:"level,omitempty"`
	Signals   map[string]float32 `json:"signals,omitempty"`
}

// handleCommand translates a JSON control request to an engine command.
func (ws *WebServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var cmd engine.Command
	switch req.Action {
	case "update_signals":
		if len(req.Signals) == 0 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "signals required")
			return
		}
		sig := signals.New()
		for id, v := range req.Signals {
			sig.Set(id, v)
		}
		cmd = engine.UpdateSignals(sig)
	case "switch_context":
		if req.ContextID == "" {
			httputil.WriteJSONError(w, http.StatusBadRequest, "context_id required")
			return
		}
		cmd = engine.SwitchContext(req.ContextID, req.Trigger)
	case "force_level":
		if req.Level < 0 || req.Level >= ale.NumLevels {
			httputil.WriteJSONError(w, http.StatusBadRequest, "level out of range")
			return
		}
		cmd = engine.ForceLevel(ale.LayerID(req.Level))
	case "release":
		cmd = engine.ReleaseManualOverride()
	case "pause":
		cmd = engine.Pause()
	case "resume":
		cmd = engine.Resume()
	case "reset":
		cmd = engine.Reset()
	default:
		httputil.WriteJSONError(w, http.StatusBadRequest, "unknown action "+req.Action)
		return
	}

	if !ws.queueCommand(cmd) {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "command queue full")
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"status": "queued", "action": req.Action})
}

// queueCommand enqueues for the daemon's forwarding loop, never blocking.
func (ws *WebServer) queueCommand(cmd engine.Command) bool {
	select {
	case ws.commands <- cmd:
		return true
	default:
		return false
	}
}

// handleSessions lists recorded sessions, newest first.
func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.store == nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "session recording disabled")
		return
	}
	sessions, err := ws.store.ListSessions(50)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type sessionJSON struct {
		RunID     string     `json:"run_id"`
		GameID    string     `json:"game_id"`
		StartedAt time.Time  `json:"started_at"`
		EndedAt   *time.Time `json:"ended_at,omitempty"`
		Notes     string     `json:"notes,omitempty"`
	}
	out := make([]sessionJSON, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionJSON{
			RunID:     s.RunID,
			GameID:    s.GameID,
			StartedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
			Notes:     s.Notes,
		})
	}
	httputil.WriteJSONOK(w, out)
}
