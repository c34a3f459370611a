// Command hexsim runs the hex settlement simulation with its HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/talgya/hexsettle/internal/api"
	"github.com/talgya/hexsettle/internal/defs"
	"github.com/talgya/hexsettle/internal/engine"
	"github.com/talgya/hexsettle/internal/persistence"
	"github.com/talgya/hexsettle/internal/world"
)

const autosaveEvery = time.Minute

func main() {
	opts := &slog.HandlerOptions{Level: logLevel(os.Getenv("HEXSIM_LOG_LEVEL"))}
	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	seed := envInt64("HEXSIM_SEED", 42)
	dbPath := envString("HEXSIM_DB", "data/hexsim.db")
	apiPort := int(envInt64("HEXSIM_PORT", 8080))
	radius := int(envInt64("HEXSIM_RADIUS", 8))
	settlementCount := int(envInt64("HEXSIM_SETTLEMENTS", 3))

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	worldID, err := db.WorldID()
	if err != nil {
		slog.Error("failed to read world id", "error", err)
		os.Exit(1)
	}

	// ── Load or Generate World ───────────────────────────────────────
	reg := defs.DefaultRegistry()
	clock := engine.NewClock(engine.DefaultDayLength)
	cfg := engine.DefaultConfig()

	hasWorld, err := db.HasWorld()
	if err != nil {
		slog.Error("failed to inspect database", "error", err)
		os.Exit(1)
	}

	var sim *engine.Simulation
	if hasWorld {
		slog.Info("found saved world, loading...")
		hexRadius, err := db.LoadHexRadius()
		if err != nil {
			slog.Error("failed to load world", "error", err)
			os.Exit(1)
		}
		sim = engine.NewSimulation(world.NewMap(hexRadius), reg, clock, cfg)
		if err := db.LoadWorld(sim); err != nil {
			slog.Error("failed to load world", "error", err)
			os.Exit(1)
		}
		slog.Info("world restored",
			"world_id", worldID,
			"settlements", len(sim.Settlements),
			"units", sim.Units.Len(),
			"sim_time", engine.SimTime(sim.Day()),
		)
	} else {
		slog.Info("no saved world found, generating...", "seed", seed, "radius", radius)
		gen := world.DefaultGenConfig()
		gen.Seed = seed
		gen.Radius = radius
		gen.Resources = reg.ResourceIDs()
		worldMap := world.Generate(gen)
		for biome, n := range worldMap.BiomeCounts() {
			slog.Debug("biome", "name", biome, "tiles", n)
		}

		sim = engine.NewSimulation(worldMap, reg, clock, cfg)
		for _, site := range world.SuggestSites(worldMap, settlementCount, cfg.MinSpacing, seed) {
			pos := world.AxialToPlane(site.Coord, worldMap.HexRadius)
			if _, err := sim.PlaceSettlement(site.Name, pos); err != nil {
				slog.Warn("settlement site rejected", "name", site.Name, "error", err)
			}
		}
		if err := db.SaveMeta("seed", strconv.FormatInt(seed, 10)); err != nil {
			slog.Error("failed to save seed", "error", err)
		}
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	defer sim.Close()

	runner := engine.NewRunner(clock)

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("HEXSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("HEXSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:      sim,
		Runner:   runner,
		DB:       db,
		Port:     apiPort,
		AdminKey: adminKey,
		WorldID:  worldID,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go autosave(ctx, runner, db, sim)

	fmt.Printf("\n%d settlements on %d tiles (world %s).\n", len(sim.Settlements), sim.WorldMap.HexCount(), worldID)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	if sim.Day() > 0 {
		fmt.Printf("Resuming from day %d (%s)\n", sim.Day(), engine.SimTime(sim.Day()))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	runner.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Simulation stopped. World state saved.")
}

// autosave writes the world periodically until ctx is cancelled.
func autosave(ctx context.Context, runner *engine.Runner, db *persistence.DB, sim *engine.Simulation) {
	ticker := time.NewTicker(autosaveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var err error
			runner.Do(func() { err = db.SaveWorldState(sim) })
			if err != nil {
				slog.Error("autosave failed", "error", err)
			}
		}
	}
}

func logLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", v)
		return def
	}
	return n
}
