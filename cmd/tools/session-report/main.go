// Command session-report renders a recorded session from the session
// database into a standalone HTML chart, without needing a running daemon.
//
// Usage:
//
//	go run ./cmd/tools/session-report -db sessions.db -run <run-id> -out report.html
//
// With no -run flag the tool lists recorded sessions and exits.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/adaptive.audio/internal/ale/monitor"
	sqlite "github.com/banshee-data/adaptive.audio/internal/ale/storage/sqlite"
)

func main() {
	dbPath := flag.String("db", "sessions.db", "Session database path")
	runID := flag.String("run", "", "Session run id (empty lists sessions)")
	out := flag.String("out", "report.html", "Output HTML file")
	flag.Parse()

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *dbPath, err)
	}
	defer db.Close()
	store := sqlite.NewSessionStore(db)

	if *runID == "" {
		listSessions(store)
		return
	}

	session, err := store.GetSession(*runID)
	if err != nil {
		log.Fatalf("Failed to load session: %v", err)
	}
	snapshots, err := store.GetSnapshots(*runID, 0)
	if err != nil {
		log.Fatalf("Failed to load snapshots: %v", err)
	}
	changes, err := store.GetLevelChanges(*runID)
	if err != nil {
		log.Fatalf("Failed to load level changes: %v", err)
	}
	if len(snapshots) == 0 {
		log.Fatalf("Session %s has no recorded snapshots", *runID)
	}

	html, err := monitor.RenderSessionChart(session, snapshots, changes)
	if err != nil {
		log.Fatalf("Failed to render chart: %v", err)
	}
	if err := os.WriteFile(*out, html, 0o644); err != nil {
		log.Fatalf("Failed to write %s: %v", *out, err)
	}
	log.Printf("Wrote %s (%d snapshots, %d level changes)", *out, len(snapshots), len(changes))
}

func listSessions(store *sqlite.SessionStore) {
	sessions, err := store.ListSessions(50)
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No recorded sessions.")
		return
	}
	for _, s := range sessions {
		ended := "running"
		if s.EndedAt != nil {
			ended = s.EndedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%s  game=%s  started=%s  ended=%s\n",
			s.RunID, s.GameID, s.StartedAt.Format("2006-01-02 15:04:05"), ended)
	}
}
