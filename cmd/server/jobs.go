package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/beacon/internal/cache"
	"github.com/aristath/beacon/internal/clients/feed"
	"github.com/aristath/beacon/internal/queue"
	"github.com/aristath/beacon/internal/reliability"
	"github.com/aristath/beacon/internal/signals"
)

const signalRetention = 30 * 24 * time.Hour

// registerJobHandlers binds every queue job type to its implementation.
func registerJobHandlers(
	manager *queue.Manager,
	signalsSvc *signals.Service,
	candles *cache.Repository,
	backups *reliability.BackupService,
	feedClient *feed.Client,
	log zerolog.Logger,
) {
	// signal_scan: one symbol when the payload names it, otherwise every
	// cached symbol.
	manager.Register(queue.JobTypeSignalScan, func(ctx context.Context, job *queue.Job) error {
		if len(job.Payload) > 0 {
			var data map[string]interface{}
			if err := msgpack.Unmarshal(job.Payload, &data); err == nil {
				if symbol, ok := data["symbol"].(string); ok && symbol != "" {
					_, err := signalsSvc.Scan(ctx, symbol)
					return err
				}
			}
		}

		symbols, err := candles.CachedSymbols()
		if err != nil {
			return err
		}
		fired := signalsSvc.ScanAll(ctx, symbols)
		log.Info().Int("symbols", len(symbols)).Int("signals", len(fired)).Msg("Signal scan completed")
		return nil
	})

	manager.Register(queue.JobTypeCacheCleanup, func(ctx context.Context, job *queue.Job) error {
		deleted, err := candles.DeleteAllExpired()
		if err != nil {
			return err
		}
		for table, n := range deleted {
			if n > 0 {
				log.Info().Str("table", table).Int64("deleted", n).Msg("Expired cache entries removed")
			}
		}
		return nil
	})

	manager.Register(queue.JobTypeSignalCleanup, func(ctx context.Context, job *queue.Job) error {
		return signalsSvc.Cleanup(time.Now().Add(-signalRetention))
	})

	if backups != nil {
		manager.Register(queue.JobTypeDailyBackup, func(ctx context.Context, job *queue.Job) error {
			if err := backups.CreateAndUpload(ctx); err != nil {
				return err
			}
			return backups.RotateOldBackups(ctx, 30)
		})
	}

	if feedClient != nil {
		manager.Register(queue.JobTypeFeedResync, func(ctx context.Context, job *queue.Job) error {
			if feedClient.IsConnected() {
				return nil
			}
			return feedClient.Start()
		})
	}
}

func mustSchedule(s *queue.Scheduler, schedule string, jobType queue.JobType, priority queue.Priority, log zerolog.Logger) {
	if err := s.Add(schedule, jobType, priority); err != nil {
		log.Fatal().Err(err).Str("job_type", string(jobType)).Msg("Failed to register schedule")
	}
}
