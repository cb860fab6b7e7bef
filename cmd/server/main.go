package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/beacon/internal/analysis"
	"github.com/aristath/beacon/internal/clients/feed"
	"github.com/aristath/beacon/internal/config"
	"github.com/aristath/beacon/internal/database"
	"github.com/aristath/beacon/internal/events"
	"github.com/aristath/beacon/internal/pool"
	"github.com/aristath/beacon/internal/queue"
	"github.com/aristath/beacon/internal/reliability"
	"github.com/aristath/beacon/internal/server"
	"github.com/aristath/beacon/internal/signals"
	"github.com/aristath/beacon/internal/cache"
	"github.com/aristath/beacon/pkg/logger"
)

const (
	mainDBFile  = "beacon.db"
	cacheDBFile = "cache.db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Beacon")

	// Databases: one durable store for signals and jobs, one tuned for the
	// ephemeral response cache.
	mainDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, mainDBFile),
		Profile: database.ProfileStandard,
		Name:    "beacon",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open main database")
	}
	defer mainDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, cacheDBFile),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	bus := events.NewBus(log)

	candles := cache.NewRepository(cacheDB.Conn())
	if err := candles.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to init cache schema")
	}

	// The analysis pool is a process-wide singleton: built once here, shared
	// by every caller. ErrUnavailable degrades to synchronous in-process
	// analysis instead of aborting startup.
	var analysisPool *pool.Supervisor
	p, err := pool.FromConfig(pool.Config{
		Enabled: cfg.PoolEnabled,
		Workers: cfg.PoolWorkers,
	}, analysis.Handler(log), log)
	switch {
	case err == nil:
		analysisPool = p
		log.Info().Int("workers", p.Size()).Msg("Analysis pool started")
	case errors.Is(err, pool.ErrUnavailable):
		log.Warn().Msg("Analysis pool unavailable, falling back to synchronous analysis")
	default:
		log.Fatal().Err(err).Msg("Failed to start analysis pool")
	}

	analyzer := analysis.NewService(analysisPool, log)

	signalsRepo := signals.NewRepository(mainDB.Conn())
	if err := signalsRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to init signals schema")
	}
	signalsSvc := signals.NewService(signalsRepo, analyzer, candles, bus, log)

	// Durable job queue plus its cron-driven feeders.
	manager := queue.NewManager(mainDB.Conn(), log)
	if err := manager.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to init jobs schema")
	}
	queue.RegisterListeners(bus, manager, log)

	var backups *reliability.BackupService
	if cfg.Backup != nil && cfg.Backup.Enabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Region:    cfg.Backup.Region,
			Bucket:    cfg.Backup.Bucket,
			AccessKey: cfg.Backup.AccessKeyID,
			SecretKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		backups = reliability.NewBackupService(s3Client, cfg.DataDir, []string{mainDBFile, cacheDBFile}, log)
	}

	var feedClient *feed.Client
	if cfg.FeedEnabled && cfg.FeedURL != "" {
		feedClient = feed.NewClient(cfg.FeedURL, candles, bus, log)
	}

	registerJobHandlers(manager, signalsSvc, candles, backups, feedClient, log)

	scheduler := queue.NewScheduler(manager, log)
	mustSchedule(scheduler, "*/15 * * * *", queue.JobTypeSignalScan, queue.PriorityMedium, log)
	mustSchedule(scheduler, "@hourly", queue.JobTypeCacheCleanup, queue.PriorityLow, log)
	mustSchedule(scheduler, "0 0 * * *", queue.JobTypeSignalCleanup, queue.PriorityLow, log)
	if backups != nil {
		mustSchedule(scheduler, "0 3 * * *", queue.JobTypeDailyBackup, queue.PriorityLow, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.Start(ctx)
	scheduler.Start()

	if feedClient != nil {
		if err := feedClient.Start(); err != nil {
			log.Warn().Err(err).Msg("Feed client will keep retrying in background")
		}
	}

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		Analysis:    analyzer,
		Signals:     signalsSvc,
		SignalsRepo: signalsRepo,
		Queue:       manager,
		Feed:        feedClient,
		Backups:     backups,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	if feedClient != nil {
		if err := feedClient.Stop(); err != nil {
			log.Error().Err(err).Msg("Error stopping feed client")
		}
	}

	scheduler.Stop()
	manager.Stop()

	if analysisPool != nil {
		analysisPool.Shutdown()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
