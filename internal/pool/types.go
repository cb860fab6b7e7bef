// Package pool provides a bounded worker pool for CPU-bound analysis work.
// A single supervisor goroutine owns all pool state (task queue, idle stack,
// pending results, worker assignments) and coordinates a fixed set of worker
// goroutines over message-passing channels. Workers are fault-isolated: a
// panic inside a task handler terminates only that worker, fails only the
// task it held, and the supervisor respawns a replacement.
package pool

import (
	"context"
	"errors"
	"fmt"
)

// TaskType selects which computation a worker runs for a task.
type TaskType string

const (
	// TaskBatchBacktest runs a batch backtest over historical candles.
	TaskBatchBacktest TaskType = "batch_backtest"
	// TaskTechnicalAnalysis computes technical indicators for a symbol.
	TaskTechnicalAnalysis TaskType = "technical_analysis"
)

var (
	// ErrShuttingDown is returned by Submit once Shutdown has begun, and is
	// the rejection cause for all handles still outstanding at shutdown.
	ErrShuttingDown = errors.New("analysis pool is shutting down")

	// ErrUnavailable signals that no pool could be constructed (disabled,
	// zero size, or no handler). Callers must run the task synchronously on
	// their own goroutine instead - the pool is an optimization, not a
	// required dependency.
	ErrUnavailable = errors.New("analysis pool unavailable")

	// ErrWorkerFailed is the rejection cause when the worker holding a task
	// terminated before reporting a result.
	ErrWorkerFailed = errors.New("worker failed")
)

// Handler is the entry point workers run for every task. It must be safe to
// call concurrently from multiple workers and must not construct pools of
// its own.
type Handler func(task Task) ([]byte, error)

// Task is the immutable unit-of-work envelope. The pool never inspects the
// payload; it is decoded by the handler.
type Task struct {
	ID      string
	Type    TaskType
	Payload []byte
}

// Result carries a task outcome: an encoded value or an error, never both.
type Result struct {
	Value []byte
	Err   error
}

// Handle is the caller's completion handle for one submitted task. It is
// resolved exactly once; the buffered channel of capacity one enforces the
// single-resolution invariant structurally.
type Handle struct {
	ch chan Result
}

func newHandle() *Handle {
	return &Handle{ch: make(chan Result, 1)}
}

// resolve satisfies the handle with a successful result.
func (h *Handle) resolve(value []byte) {
	h.ch <- Result{Value: value}
}

// reject satisfies the handle with an error.
func (h *Handle) reject(err error) {
	h.ch <- Result{Err: err}
}

// Done returns the channel the result is delivered on. It receives exactly
// one value.
func (h *Handle) Done() <-chan Result {
	return h.ch
}

// Wait blocks until the task completes or the context is cancelled.
func (h *Handle) Wait(ctx context.Context) ([]byte, error) {
	select {
	case res := <-h.ch:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for task result: %w", ctx.Err())
	}
}

// Stats is a point-in-time snapshot of supervisor state, taken on the
// supervisor's own goroutine.
type Stats struct {
	Workers      int  `json:"workers"`
	Idle         int  `json:"idle"`
	Queued       int  `json:"queued"`
	Pending      int  `json:"pending"`
	ShuttingDown bool `json:"shutting_down"`
}
