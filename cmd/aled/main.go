// Command aled runs the adaptive layer daemon: it loads a content pack,
// ticks the engine on a wall-clock timer in place of an audio callback, and
// serves the monitoring HTTP interface.
//
// Usage:
//
//	go run ./cmd/aled [flags]
//
// Flags:
//
//	-config   Daemon YAML config file (optional; flags override it)
//	-tuning   Tuning config JSON (default: config/tuning.defaults.json when present)
//	-content  Content pack directory (default: content)
//	-listen   Monitor HTTP listen address (default: :8080)
//	-db       Session database path
//	-record   Record snapshots and level changes to the session database
//	-game     Game id stamped on recorded sessions (default: dev)
//	-debug    Enable debug logging
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/adaptive.audio/internal/ale/content"
	"github.com/banshee-data/adaptive.audio/internal/ale/daemon"
	"github.com/banshee-data/adaptive.audio/internal/config"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
	"github.com/banshee-data/adaptive.audio/internal/version"
)

var (
	configPath = flag.String("config", "", "Daemon YAML config file")
	tuningPath = flag.String("tuning", "", "Tuning config JSON")
	contentDir = flag.String("content", "", "Content pack directory")
	listenAddr = flag.String("listen", "", "Monitor HTTP listen address")
	dbPath     = flag.String("db", "", "Session database path")
	record     = flag.Bool("record", false, "Record sessions to the database")
	gameID     = flag.String("game", "", "Game id stamped on recorded sessions")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	dcfg := config.DefaultDaemonConfig()
	if *configPath != "" {
		loaded, err := config.LoadDaemonConfig(*configPath)
		if err != nil {
			monitoring.Logf("failed to load config %s: %v", *configPath, err)
			os.Exit(1)
		}
		dcfg = loaded
	}
	applyFlagOverrides(&dcfg)

	monitoring.SetDebug(dcfg.Logging.Debug)
	monitoring.Logf("aled %s starting", version.Version)

	tuning := loadTuning(dcfg.TuningPath)

	pack, err := content.Load(dcfg.ContentDir)
	if err != nil {
		monitoring.Logf("failed to load content pack from %s: %v", dcfg.ContentDir, err)
		os.Exit(1)
	}
	monitoring.Logf("content pack %s: %d contexts, %d rules, %d transition profiles",
		dcfg.ContentDir, pack.Contexts.Len(), pack.Rules.Len(), pack.Transitions.Len())

	cfg := daemon.Config{
		Tuning:  tuning,
		Pack:    pack,
		Address: dcfg.Listen,
		GameID:  dcfg.Recording.GameID,
	}
	if dcfg.Recording.Enabled {
		cfg.SessionDBPath = dcfg.Recording.DBPath
	}

	d, err := daemon.New(cfg)
	if err != nil {
		monitoring.Logf("failed to start daemon: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		monitoring.Logf("daemon exited with error: %v", err)
		os.Exit(1)
	}
	monitoring.Logf("aled stopped")
}

// applyFlagOverrides layers explicitly set flags over the file config.
func applyFlagOverrides(cfg *config.DaemonConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tuning":
			cfg.TuningPath = *tuningPath
		case "content":
			cfg.ContentDir = *contentDir
		case "listen":
			cfg.Listen = *listenAddr
		case "db":
			cfg.Recording.DBPath = *dbPath
		case "record":
			cfg.Recording.Enabled = *record
		case "game":
			cfg.Recording.GameID = *gameID
		case "debug":
			cfg.Logging.Debug = *debug
		}
	})
}

// loadTuning resolves the tuning config: an explicit path must load, the
// default path is used when present, and otherwise engine defaults apply.
func loadTuning(path string) *config.TuningConfig {
	if path != "" {
		cfg, err := config.LoadTuningConfig(path)
		if err != nil {
			monitoring.Logf("failed to load tuning %s: %v", path, err)
			os.Exit(1)
		}
		return cfg
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		cfg, err := config.LoadTuningConfig(config.DefaultConfigPath)
		if err != nil {
			monitoring.Logf("failed to load tuning %s: %v", config.DefaultConfigPath, err)
			os.Exit(1)
		}
		return cfg
	}
	return config.EmptyTuningConfig()
}
