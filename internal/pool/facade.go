package pool

import (
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Config controls construction of the analysis pool. It is populated from
// the environment by the config package; the process-wide singleton is
// layered on top at the composition root (cmd/server), not here, so tests
// can construct as many pools as they like.
type Config struct {
	// Enabled turns the pool off entirely when false.
	Enabled bool
	// Workers is the pool size. Non-positive means "derive from CPU count".
	Workers int
}

// DefaultWorkers returns the platform-derived default pool size: the logical
// CPU count.
func DefaultWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// FromConfig builds a supervisor from configuration and a resolved task
// handler. It returns ErrUnavailable when the pool is disabled, sizes to
// zero, or no handler could be resolved. Callers receiving ErrUnavailable
// must execute tasks synchronously on their own goroutine - the pool is an
// optimization, not a required dependency.
//
// Task handlers must never call FromConfig themselves: pools of pools are
// disallowed, and only the orchestrating context owns one.
func FromConfig(cfg Config, handler Handler, log zerolog.Logger) (*Supervisor, error) {
	if !cfg.Enabled {
		log.Info().Msg("Analysis pool disabled by configuration")
		return nil, ErrUnavailable
	}
	if handler == nil {
		log.Warn().Msg("No analysis handler resolved, pool unavailable")
		return nil, ErrUnavailable
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers <= 0 {
		return nil, ErrUnavailable
	}

	log.Info().Int("workers", workers).Msg("Analysis pool starting")
	return NewSupervisor(workers, handler, log), nil
}
