// Package daemon runs the engine outside an audio process: a wall-clock
// ticker stands in for the audio callback, published snapshots feed the
// monitor and the optional session recorder, and monitor commands are
// forwarded onto the engine channel.
//
// The loop is the single goroutine on both ends of the engine's SPSC pair,
// so the one-producer one-consumer rule holds no matter how many HTTP
// handlers raise commands concurrently.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/content"
	"github.com/banshee-data/adaptive.audio/internal/ale/engine"
	"github.com/banshee-data/adaptive.audio/internal/ale/monitor"
	sqlite "github.com/banshee-data/adaptive.audio/internal/ale/storage/sqlite"
	"github.com/banshee-data/adaptive.audio/internal/config"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
	"github.com/banshee-data/adaptive.audio/internal/timeutil"
)

// Config assembles a daemon.
type Config struct {
	Tuning  *config.TuningConfig
	Pack    *content.Pack
	Address string

	// SessionDBPath enables session recording when non-empty.
	SessionDBPath string
	GameID        string

	// Clock defaults to the real clock; tests inject a mock.
	Clock timeutil.Clock
}

// Daemon owns the engine, the monitor server and the optional recorder.
type Daemon struct {
	tuning  *config.TuningConfig
	engine  *engine.Engine
	web     *monitor.WebServer
	db      *sqlite.DB
	store   *sqlite.SessionStore
	gameID  string
	clock   timeutil.Clock
	address string

	// previous published values, for level-change detection.
	lastLevel   ale.LayerID
	lastContext string
	lastRule    string
	haveState   bool
}

// New builds a daemon from its configuration. The session database is opened
// and migrated here so a broken path fails startup rather than the loop.
func New(cfg Config) (*Daemon, error) {
	if cfg.Tuning == nil {
		cfg.Tuning = config.EmptyTuningConfig()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	eng := engine.New(engine.Config{
		Contexts:    cfg.Pack.Contexts,
		Rules:       cfg.Pack.Rules,
		Transitions: cfg.Pack.Transitions,
		Stability:   cfg.Tuning.ToStability(),
	})

	d := &Daemon{
		tuning:  cfg.Tuning,
		engine:  eng,
		gameID:  cfg.GameID,
		clock:   cfg.Clock,
		address: cfg.Address,
	}

	if cfg.SessionDBPath != "" {
		db, err := sqlite.Open(cfg.SessionDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		if err := db.MigrateUp(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate session database: %w", err)
		}
		d.db = db
		d.store = sqlite.NewSessionStore(db)
	}

	d.web = monitor.NewWebServer(monitor.WebServerConfig{
		Address:   cfg.Address,
		Published: eng.Published(),
		Store:     d.store,
		Tuning:    cfg.Tuning,
	})
	return d, nil
}

// Engine exposes the engine for tests and embedding callers.
func (d *Daemon) Engine() *engine.Engine { return d.engine }

// Run drives the tick loop until ctx is cancelled. The monitor server runs
// alongside and is shut down with the same context.
func (d *Daemon) Run(ctx context.Context) error {
	webDone := make(chan error, 1)
	go func() { webDone <- d.web.Start(ctx) }()

	var session *sqlite.Session
	if d.store != nil {
		var err error
		session, err = d.store.StartSession(d.gameID, "")
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		monitoring.Logf("recording session %s (game %s)", session.RunID, d.gameID)
	}

	tickInterval := d.tuning.GetTickInterval()
	deltaMs := float64(tickInterval) / float64(time.Millisecond)

	// Snapshots are recorded every Nth tick.
	snapEvery := int(d.tuning.GetSnapshotInterval() / tickInterval)
	if snapEvery < 1 {
		snapEvery = 1
	}

	ticker := d.clock.NewTicker(tickInterval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			if session != nil {
				if err := d.store.EndSession(session.RunID); err != nil {
					monitoring.Logf("failed to end session %s: %v", session.RunID, err)
				}
			}
			if d.db != nil {
				d.db.Close()
			}
			return <-webDone

		case cmd := <-d.web.Commands():
			if !d.engine.Channel().Send(cmd) {
				monitoring.Logf("engine command queue full, dropped command kind %d", cmd.Kind)
			}

		case <-ticker.C():
			d.engine.Tick(deltaMs)
			ticks++
			st := d.engine.Channel().DrainState()
			if st == nil {
				continue
			}
			d.web.Publish(st)
			if session != nil {
				d.record(session.RunID, st, ticks%snapEvery == 0)
			}
			d.observe(st)
		}
	}
}

// record persists a level change when one is detected and, on snapshot
// ticks, the full state.
func (d *Daemon) record(runID string, st *engine.State, snapshotTick bool) {
	if d.haveState && st.CurrentLevel != d.lastLevel {
		change := &sqlite.LevelChange{
			RunID:     runID,
			TMs:       st.TimestampMs,
			ContextID: st.ContextID,
			FromLevel: d.lastLevel,
			ToLevel:   st.CurrentLevel,
			Reason:    d.changeReason(st),
		}
		if change.Reason == "rule" {
			change.RuleID = st.LastFiredRule
		}
		if err := d.store.RecordLevelChange(change); err != nil {
			monitoring.Logf("failed to record level change: %v", err)
		}
	}
	if snapshotTick {
		if err := d.store.RecordState(runID, st); err != nil {
			monitoring.Logf("failed to record snapshot: %v", err)
		}
	}
}

// changeReason classifies a committed level change from the snapshot delta.
// The engine does not annotate changes, so this is an observer's inference.
func (d *Daemon) changeReason(st *engine.State) string {
	switch {
	case st.ManualOverride:
		return "manual"
	case st.ContextID != d.lastContext:
		return "context_entry"
	case st.LastFiredRule != "" && st.LastFiredRule != d.lastRule:
		return "rule"
	default:
		return "decay"
	}
}

func (d *Daemon) observe(st *engine.State) {
	if d.haveState && st.CurrentLevel != d.lastLevel {
		monitoring.Debugf("level %d -> %d (context %s, rule %q)",
			d.lastLevel, st.CurrentLevel, st.ContextID, st.LastFiredRule)
	}
	d.lastLevel = st.CurrentLevel
	d.lastContext = st.ContextID
	d.lastRule = st.LastFiredRule
	d.haveState = true
}
