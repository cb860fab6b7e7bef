package pool

import "fmt"

// eventKind discriminates messages a worker sends back to the supervisor.
type eventKind int

const (
	// eventResult carries a tagged task outcome.
	eventResult eventKind = iota
	// eventExit reports that the worker goroutine terminated.
	eventExit
)

// workerEvent is the only message type flowing from workers to the
// supervisor. Result events are tagged with the task id; exit events carry
// crashed=true when the goroutine died from a recovered panic.
type workerEvent struct {
	worker  *worker
	kind    eventKind
	taskID  string
	value   []byte
	err     error
	crashed bool
}

// worker is one isolated execution unit. It owns nothing but its inbox; all
// bookkeeping (idle/busy state, task assignment) lives in the supervisor.
type worker struct {
	id      int
	tasks   chan Task
	events  chan<- workerEvent
	handler Handler
}

func newWorker(id int, handler Handler, events chan<- workerEvent) *worker {
	return &worker{
		id:      id,
		tasks:   make(chan Task, 1),
		events:  events,
		handler: handler,
	}
}

// start launches the worker goroutine.
func (w *worker) start() {
	go w.run()
}

// run executes tasks one at a time until the inbox is closed. A panic in the
// handler is recovered here, at the goroutine boundary, so it cannot reach
// supervisor state; it is reported as a crashed exit instead.
func (w *worker) run() {
	defer func() {
		if r := recover(); r != nil {
			w.events <- workerEvent{
				worker:  w,
				kind:    eventExit,
				err:     fmt.Errorf("%w: %v", ErrWorkerFailed, r),
				crashed: true,
			}
			return
		}
		// Inbox closed: clean exit during shutdown.
		w.events <- workerEvent{worker: w, kind: eventExit}
	}()

	for task := range w.tasks {
		value, err := w.handler(task)
		w.events <- workerEvent{
			worker: w,
			kind:   eventResult,
			taskID: task.ID,
			value:  value,
			err:    err,
		}
	}
}

// terminate closes the worker's inbox, letting the goroutine finish its
// current task (if any) and exit.
func (w *worker) terminate() {
	close(w.tasks)
}
