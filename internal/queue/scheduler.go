package queue

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler enqueues time-based jobs on cron schedules.
type Scheduler struct {
	cron    *cron.Cron
	manager *Manager
	log     zerolog.Logger
}

func NewScheduler(manager *Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		manager: manager,
		log:     log.With().Str("component", "time_scheduler").Logger(),
	}
}

// Add registers a periodic enqueue of the given job type.
// Schedule examples:
//   - "*/5 * * * *"  - Every 5 minutes
//   - "@hourly"      - Every hour
//   - "0 3 * * *"    - Daily at 3:00 AM
func (s *Scheduler) Add(schedule string, jobType JobType, priority Priority) error {
	_, err := s.cron.AddFunc(schedule, func() {
		job := &Job{Type: jobType, Priority: priority}
		if err := s.manager.Enqueue(job); err != nil {
			s.log.Error().
				Err(err).
				Str("job_type", string(jobType)).
				Msg("Failed to enqueue scheduled job")
		}
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job_type", string(jobType)).
		Msg("Scheduled job registered")
	return nil
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Time scheduler started")
}

// Stop stops the cron loop and waits for running entries to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Time scheduler stopped")
}
