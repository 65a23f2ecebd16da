// Package main is the entry point for the Pulse retail analytics core.
// It aggregates point-of-sale documents (sales, returns, purchases, ledger
// movements) into dashboard statistics, charts and heatmaps, served over a
// small HTTP API with an SSE stream for live updates.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/retailpulse/pulse/internal/config"
	"github.com/retailpulse/pulse/internal/database"
	"github.com/retailpulse/pulse/internal/events"
	"github.com/retailpulse/pulse/internal/modules/cache"
	"github.com/retailpulse/pulse/internal/modules/dashboard"
	"github.com/retailpulse/pulse/internal/modules/datasource"
	"github.com/retailpulse/pulse/internal/modules/offload"
	"github.com/retailpulse/pulse/internal/modules/settings"
	"github.com/retailpulse/pulse/internal/scheduler"
	"github.com/retailpulse/pulse/internal/server"
	"github.com/retailpulse/pulse/pkg/logger"
)

func main() {
	// Load configuration first to get log level.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Pulse")

	// Three-database architecture:
	// - documents.db: raw POS documents written by upstream CRUD services
	// - config.db: user preferences (timeframe, custom range)
	// - cache.db: ephemeral memoized aggregation results
	documentsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "documents.db"),
		Profile: database.ProfileStandard,
		Name:    "documents",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open documents database")
	}
	defer documentsDB.Close()

	configDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "config.db"),
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open config database")
	}
	defer configDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	bus := events.NewBus(log)

	store, err := datasource.NewSQLiteStore(documentsDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize document store")
	}
	adapter := datasource.NewAdapter(store, cfg.CollectionLimit, log)

	settingsRepo, err := settings.NewRepository(configDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize settings repository")
	}
	prefs := settings.NewService(settingsRepo, bus, log)

	memo, err := offload.NewMemo(cacheDB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize memo store")
	}

	coordinator := cache.NewCoordinator(adapter, cfg.CacheDuration, cache.SystemClock{}, log)

	// The worker stays idle until the first dashboard consumer activates;
	// the lifecycle manager starts and stops it.
	worker := offload.NewWorker(2*time.Minute, log)

	dash := dashboard.New(coordinator, worker, memo, prefs, bus, cache.SystemClock{}, dashboard.Config{
		MemoTTL:       cfg.MemoTTL,
		DebounceDelay: cfg.DebounceDelay,
		CleanupGrace:  cfg.CleanupGrace,
	}, log)

	// Periodic maintenance: sweep expired memo entries (refreshing the cache
	// when a consumer is connected) and watch WAL checkpoint backlog.
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.SweepSpec, scheduler.NewStalenessSweepJob(dash.SweepStale)); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSpec).Msg("Failed to register staleness sweep")
	}
	walJob := scheduler.NewCheckWALCheckpointsJob(map[string]*database.DB{
		"documents": documentsDB,
		"config":    configDB,
		"cache":     cacheDB,
	}, log)
	if err := sched.AddJob("@every 5m", walJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register WAL checkpoint job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:         log,
		Config:      cfg,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		Dashboard:   dash,
		Store:       store,
		Bus:         bus,
		DocumentsDB: documentsDB,
		ConfigDB:    configDB,
		CacheDB:     cacheDB,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()
	dash.Close()
	worker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
