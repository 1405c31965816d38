package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KallynGowdy/aux-sub000/internal/asset"
	"github.com/KallynGowdy/aux-sub000/internal/calc"
	"github.com/KallynGowdy/aux-sub000/internal/config"
	"github.com/KallynGowdy/aux-sub000/internal/core/event"
	coresys "github.com/KallynGowdy/aux-sub000/internal/core/system"
	"github.com/KallynGowdy/aux-sub000/internal/data"
	"github.com/KallynGowdy/aux-sub000/internal/feed"
	"github.com/KallynGowdy/aux-sub000/internal/persist"
	"github.com/KallynGowdy/aux-sub000/internal/render"
	"github.com/KallynGowdy/aux-sub000/internal/scene"
	"github.com/KallynGowdy/aux-sub000/internal/scripting"
	"github.com/KallynGowdy/aux-sub000/internal/system"
	"github.com/KallynGowdy/aux-sub000/internal/tag"
	"github.com/KallynGowdy/aux-sub000/internal/views"
	"github.com/KallynGowdy/aux-sub000/internal/watch"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             auxscene  v0.1.0              \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      entity → scene reconciliation        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mscene:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - scene.DisplayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - scene.DisplayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main loop ─────────────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/scene.toml"
	if p := os.Getenv("AUXSCENE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Scene.Name)

	interp, err := scene.ParseInterpolation(cfg.Scene.Interpolation)
	if err != nil {
		return fmt.Errorf("scene config: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Formula engine and assets
	printSection("engine")
	luaEngine, err := scripting.NewEngine(cfg.Scene.ScriptsDir, cfg.Scene.FormulaTimeout, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer luaEngine.Close()
	printOK("Lua formula engine ready")

	library, err := asset.LoadLibrary(cfg.Assets.Manifest)
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	meshes := asset.NewQueue(library, cfg.Assets.MaxConcurrentLoads, log)
	printStat("meshes", library.Count())
	fmt.Println()

	// 4. Simulation and derived views, subscribed before anything is loaded
	bus := event.NewBus()
	store := watch.NewStore(bus)
	graph := render.NewScene()
	sim := scene.NewSimulation(scene.Deps{
		Graph:         graph,
		Calc:          calc.SnapshotFactory(luaEngine),
		Meshes:        meshes,
		Interpolation: interp,
		LerpFactor:    cfg.Scene.LerpFactor,
		Log:           log,
	})
	defer sim.Dispose()

	menu := views.NewMenu(cfg.Views.MenuContext, log)
	menu.Subscribe(func(items []*tag.Entity) {
		log.Debug("menu published", zap.Strings("items", entityIDs(items)))
	})
	inventory := views.NewInventory(cfg.Views.InventoryContext, cfg.Views.InventorySlots, log)
	inventory.Subscribe(func(slots []*tag.Entity) {
		log.Debug("inventory published", zap.Strings("slots", entityIDs(slots)))
	})
	sims := views.NewSimulations(cfg.Views.SimulationsContext, log)
	sims.Subscribe(func(refs []views.SimulationRef) {
		channels := make([]string, len(refs))
		for i, r := range refs {
			channels[i] = r.Channel
		}
		log.Debug("simulations published", zap.Strings("channels", channels))
	})
	sim.Track(menu)
	sim.Track(inventory)
	sim.Track(sims)
	sim.Init(ctx, store)

	// 5. Entity state: fixture, then the stored snapshot on top
	printSection("entities")
	if cfg.Scene.Fixture != "" {
		entities, err := data.LoadEntities(cfg.Scene.Fixture)
		if err != nil {
			return fmt.Errorf("fixture: %w", err)
		}
		store.Add(entities...)
		printStat("fixture entities", len(entities))
	}

	var saver system.EntitySaver
	if cfg.Database.DSN != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(dbCtx, cfg.Database, log)
		if err != nil {
			cancel()
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		if err := persist.RunMigrations(dbCtx, db.Pool, log); err != nil {
			cancel()
			return fmt.Errorf("migrations: %w", err)
		}
		repo := persist.NewEntityRepo(db)
		stored, err := repo.LoadAll(dbCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("load entities: %w", err)
		}
		store.Add(stored...)
		saver = repo
		printOK("PostgreSQL connected")
		printStat("stored entities", len(stored))
	}
	// Deliver the boot load before the first frame.
	bus.SwapBuffers()
	bus.DispatchAll()
	printStat("groups", len(sim.Groups()))
	printStat("scene nodes", graph.Len())
	fmt.Println()

	// 6. Frame loop systems
	runner := coresys.NewRunner()
	var feedSys *system.FeedSystem
	var feedServer *feed.Server
	if cfg.Feed.Enabled {
		feedServer, err = feed.NewServer(
			cfg.Feed.BindAddress,
			cfg.Feed.InQueueSize,
			cfg.Feed.BatchesPerSecond,
			cfg.Feed.ReadTimeout,
			log,
		)
		if err != nil {
			return fmt.Errorf("feed server: %w", err)
		}
		go feedServer.AcceptLoop()
		feedSys = system.NewFeedSystem(feedServer, store, cfg.Feed.MaxBatchesPerTick, log)
		runner.Register(feedSys)
	}
	runner.Register(system.NewDispatchSystem(bus, meshes))
	runner.Register(system.NewFrameSystem(ctx, sim))
	var persistSys *system.PersistenceSystem
	if saver != nil {
		persistSys = system.NewPersistenceSystem(store, saver, log, saveTicks(cfg))
		runner.Register(persistSys)
	}

	// 7. Start frame loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Scene.TickRate)
	defer ticker.Stop()

	printSection("ready")
	if feedServer != nil {
		printReady(fmt.Sprintf("feed listening on %s", feedServer.Addr().String()))
	}
	printReady(fmt.Sprintf("frame loop started (tick: %s)", cfg.Scene.TickRate))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Scene.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			stop()
			if feedServer != nil {
				feedServer.Shutdown()
				feedSys.Close()
			}
			meshes.Wait()
			if persistSys != nil {
				persistSys.SaveNow()
			}
			log.Info("scene stopped",
				zap.Int("entities", store.Len()),
				zap.Int("scene_nodes", graph.Len()),
			)
			return nil
		}
	}
}

// saveTicks converts the save interval into frame ticks.
func saveTicks(cfg *config.Config) int {
	if cfg.Scene.TickRate <= 0 {
		return 1
	}
	n := int(cfg.Database.SaveInterval / cfg.Scene.TickRate)
	if n < 1 {
		n = 1
	}
	return n
}

func entityIDs(es []*tag.Entity) []string {
	out := make([]string, len(es))
	for i, e := range es {
		if e == nil {
			continue
		}
		out[i] = e.ID()
	}
	return out
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
