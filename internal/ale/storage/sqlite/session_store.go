package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/adaptive.audio/internal/ale"
	"github.com/banshee-data/adaptive.audio/internal/ale/engine"
)

// Session is one recorded engine run.
type Session struct {
	RunID     string
	GameID    string
	StartedAt time.Time
	EndedAt   *time.Time
	Notes     string
}

// LevelChange is one committed level movement during a session. Reason
// distinguishes how the change came about ("rule", "decay", "context_entry",
// "manual").
type LevelChange struct {
	RunID     string
	TMs       float64
	ContextID string
	FromLevel ale.LayerID
	ToLevel   ale.LayerID
	RuleID    string
	Reason    string
}

// Snapshot is a persisted engine state sample.
type Snapshot struct {
	RunID              string
	TMs                float64
	ContextID          string
	CurrentLevel       ale.LayerID
	TargetLevel        *ale.LayerID
	TransitionProgress float64
	Playing            bool
	ManualOverride     bool
	BeatPosition       float64
	Signals            map[string]float32
}

// SessionStore manages persistence for engine sessions.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a SessionStore backed by the given database.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// StartSession creates a new session row and returns it with a fresh run id.
func (s *SessionStore) StartSession(gameID, notes string) (*Session, error) {
	sess := &Session{
		RunID:     uuid.NewString(),
		GameID:    gameID,
		StartedAt: time.Now().UTC(),
		Notes:     notes,
	}
	_, err := s.db.Exec(
		`INSERT INTO ale_sessions (run_id, game_id, started_at, notes) VALUES (?, ?, ?, ?)`,
		sess.RunID, sess.GameID, sess.StartedAt, sess.Notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// EndSession stamps the session's end time.
func (s *SessionStore) EndSession(runID string) error {
	res, err := s.db.Exec(
		`UPDATE ale_sessions SET ended_at = ? WHERE run_id = ?`,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("end session: unknown run id %q", runID)
	}
	return nil
}

// GetSession loads a session by run id.
func (s *SessionStore) GetSession(runID string) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT run_id, game_id, started_at, ended_at, notes FROM ale_sessions WHERE run_id = ?`,
		runID,
	)
	sess := &Session{}
	var ended sql.NullTime
	if err := row.Scan(&sess.RunID, &sess.GameID, &sess.StartedAt, &ended, &sess.Notes); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

// ListSessions returns sessions newest first, up to limit.
func (s *SessionStore) ListSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT run_id, game_id, started_at, ended_at, notes
		 FROM ale_sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess := &Session{}
		var ended sql.NullTime
		if err := rows.Scan(&sess.RunID, &sess.GameID, &sess.StartedAt, &ended, &sess.Notes); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			sess.EndedAt = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RecordLevelChange appends a level-change event to the session log.
func (s *SessionStore) RecordLevelChange(c *LevelChange) error {
	_, err := s.db.Exec(
		`INSERT INTO ale_level_changes (run_id, t_ms, context_id, from_level, to_level, rule_id, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.RunID, c.TMs, c.ContextID, c.FromLevel, c.ToLevel, c.RuleID, c.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert level change: %w", err)
	}
	return nil
}

// GetLevelChanges returns a session's level changes in time order.
func (s *SessionStore) GetLevelChanges(runID string) ([]*LevelChange, error) {
	rows, err := s.db.Query(
		`SELECT run_id, t_ms, context_id, from_level, to_level, rule_id, reason
		 FROM ale_level_changes WHERE run_id = ? ORDER BY t_ms`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get level changes: %w", err)
	}
	defer rows.Close()

	var out []*LevelChange
	for rows.Next() {
		c := &LevelChange{}
		if err := rows.Scan(&c.RunID, &c.TMs, &c.ContextID, &c.FromLevel, &c.ToLevel, &c.RuleID, &c.Reason); err != nil {
			return nil, fmt.Errorf("scan level change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordState persists one engine snapshot under the given run.
func (s *SessionStore) RecordState(runID string, st *engine.State) error {
	sigs := map[string]float32{}
	if st.Signals != nil {
		st.Signals.Each(func(id string, v float32) { sigs[id] = v })
	}
	sigJSON, err := json.Marshal(sigs)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}

	var target any
	if st.HasTarget {
		target = int(st.TargetLevel)
	}
	_, err = s.db.Exec(
		`INSERT INTO ale_snapshots (run_id, t_ms, context_id, current_level, target_level,
		    transition_progress, playing, manual_override, beat_position, signals_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, st.TimestampMs, st.ContextID, int(st.CurrentLevel), target,
		st.TransitionProgress, st.Playing, st.ManualOverride, st.BeatPosition, string(sigJSON),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshots returns a session's snapshots in time order, up to limit.
func (s *SessionStore) GetSnapshots(runID string, limit int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := s.db.Query(
		`SELECT run_id, t_ms, context_id, current_level, target_level,
		        transition_progress, playing, manual_override, beat_position, signals_json
		 FROM ale_snapshots WHERE run_id = ? ORDER BY t_ms LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		var target sql.NullInt64
		var sigJSON string
		if err := rows.Scan(&snap.RunID, &snap.TMs, &snap.ContextID, &snap.CurrentLevel, &target,
			&snap.TransitionProgress, &snap.Playing, &snap.ManualOverride, &snap.BeatPosition, &sigJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if target.Valid {
			lv := ale.LayerID(target.Int64)
			snap.TargetLevel = &lv
		}
		if err := json.Unmarshal([]byte(sigJSON), &snap.Signals); err != nil {
			return nil, fmt.Errorf("unmarshal signals: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
