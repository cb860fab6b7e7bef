package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HandlerFunc processes one job. A returned error schedules a retry until the
// job's retry budget is exhausted.
type HandlerFunc func(ctx context.Context, job *Job) error

// Manager owns the jobs table and runs a single background runner that
// processes jobs one at a time, highest priority first.
type Manager struct {
	db           *sql.DB
	log          zerolog.Logger
	pollInterval time.Duration
	retryDelay   time.Duration

	mu       sync.RWMutex
	handlers map[JobType]HandlerFunc

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	stopped   chan struct{}
}

func NewManager(db *sql.DB, log zerolog.Logger) *Manager {
	return &Manager{
		db:           db,
		log:          log.With().Str("component", "queue").Logger(),
		pollInterval: time.Second,
		retryDelay:   30 * time.Second,
		handlers:     make(map[JobType]HandlerFunc),
		stop:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

// InitSchema creates the jobs table if it does not exist.
func (m *Manager) InitSchema() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			payload BLOB,
			created_at INTEGER NOT NULL,
			available_at INTEGER NOT NULL,
			retries INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3
		);
		CREATE INDEX IF NOT EXISTS idx_jobs_ready ON jobs(available_at, priority DESC, created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create jobs schema: %w", err)
	}
	return nil
}

// Register binds a handler to a job type. Jobs of unregistered types stay in
// the table untouched.
func (m *Manager) Register(jobType JobType, handler HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[jobType] = handler
}

// Enqueue persists a job. Missing fields get defaults: a fresh ID, immediate
// availability and a retry budget of 3.
func (m *Manager) Enqueue(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.AvailableAt.IsZero() {
		job.AvailableAt = job.CreatedAt
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = 3
	}

	_, err := m.db.Exec(
		`INSERT INTO jobs (id, type, priority, payload, created_at, available_at, retries, max_retries)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Type), int(job.Priority), job.Payload,
		job.CreatedAt.Unix(), job.AvailableAt.Unix(), job.Retries, job.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", job.Type, err)
	}

	m.log.Debug().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Int("priority", int(job.Priority)).
		Msg("Job enqueued")
	return nil
}

// Dequeue claims the highest-priority available job, or nil when none is
// ready. Only the runner and tests call this.
func (m *Manager) Dequeue() (*Job, error) {
	row := m.db.QueryRow(
		`SELECT id, type, priority, payload, created_at, available_at, retries, max_retries
		 FROM jobs WHERE available_at <= ?
		 ORDER BY priority DESC, created_at ASC LIMIT 1`, time.Now().Unix())

	var job Job
	var jobType string
	var priority int
	var created, available int64
	err := row.Scan(&job.ID, &jobType, &priority, &job.Payload, &created, &available, &job.Retries, &job.MaxRetries)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}
	job.Type = JobType(jobType)
	job.Priority = Priority(priority)
	job.CreatedAt = time.Unix(created, 0)
	job.AvailableAt = time.Unix(available, 0)

	if _, err := m.db.Exec(`DELETE FROM jobs WHERE id = ?`, job.ID); err != nil {
		return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
	}
	return &job, nil
}

// Size returns the number of jobs in the table, ready or not.
func (m *Manager) Size() int {
	var n int
	if err := m.db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Start launches the runner goroutine. Safe to call once.
func (m *Manager) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.run(ctx)
		m.log.Info().Msg("Queue runner started")
	})
}

// Stop signals the runner and waits for it to drain the job in flight.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.stopped
	m.log.Info().Msg("Queue runner stopped")
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.stopped)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.drain(ctx)
		}
	}
}

// drain processes ready jobs until the table has none left or a stop is
// requested.
func (m *Manager) drain(ctx context.Context) {
	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.Dequeue()
		if err != nil {
			m.log.Error().Err(err).Msg("Failed to dequeue job")
			return
		}
		if job == nil {
			return
		}
		m.process(ctx, job)
	}
}

func (m *Manager) process(ctx context.Context, job *Job) {
	m.mu.RLock()
	handler, ok := m.handlers[job.Type]
	m.mu.RUnlock()
	if !ok {
		m.log.Warn().
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Msg("No handler registered, dropping job")
		return
	}

	start := time.Now()
	err := m.invoke(ctx, handler, job)
	if err == nil {
		m.log.Debug().
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Str("description", GetJobDescription(job.Type)).
			Dur("duration", time.Since(start)).
			Msg("Job completed")
		return
	}

	job.Retries++
	if job.Retries > job.MaxRetries {
		m.log.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Int("retries", job.Retries-1).
			Msg("Job failed permanently")
		return
	}

	// Linear backoff: each attempt pushes availability further out.
	job.AvailableAt = time.Now().Add(m.retryDelay * time.Duration(job.Retries))
	if enqErr := m.Enqueue(job); enqErr != nil {
		m.log.Error().Err(enqErr).Str("job_id", job.ID).Msg("Failed to requeue job")
		return
	}
	m.log.Warn().
		Err(err).
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Int("retry", job.Retries).
		Time("available_at", job.AvailableAt).
		Msg("Job failed, scheduled for retry")
}

// invoke runs a handler with panic containment so a bad job cannot take the
// runner down.
func (m *Manager) invoke(ctx context.Context, handler HandlerFunc, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}
