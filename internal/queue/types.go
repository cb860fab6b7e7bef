// Package queue is a sqlite-backed durable job queue. Jobs survive restarts,
// carry a priority and a retry budget, and become visible only once their
// availability time has passed.
package queue

import "time"

// JobType represents the type of job
type JobType string

const (
	JobTypeSignalScan    JobType = "signal_scan"
	JobTypeCacheCleanup  JobType = "cache_cleanup"
	JobTypeSignalCleanup JobType = "signal_cleanup"
	JobTypeDailyBackup   JobType = "daily_backup"
	JobTypeFeedResync    JobType = "feed_resync"
)

// Priority represents job priority
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Job represents a queued job. Payload is an opaque msgpack blob owned by the
// job's handler.
type Job struct {
	ID          string
	Type        JobType
	Priority    Priority
	Payload     []byte
	CreatedAt   time.Time
	AvailableAt time.Time
	Retries     int
	MaxRetries  int
}

// GetJobDescription returns a human-readable description for a job type
func GetJobDescription(jobType JobType) string {
	descriptions := map[JobType]string{
		JobTypeSignalScan:    "Scanning symbols for signals",
		JobTypeCacheCleanup:  "Cleaning up expired cache entries",
		JobTypeSignalCleanup: "Cleaning up old signals",
		JobTypeDailyBackup:   "Uploading snapshot to cloud",
		JobTypeFeedResync:    "Resyncing market data feed",
	}

	if desc, exists := descriptions[jobType]; exists {
		return desc
	}
	return string(jobType)
}
