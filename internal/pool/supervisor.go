package pool

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Supervisor owns a fixed set of workers and matches queued tasks to idle
// ones. All of its state is confined to the run loop goroutine; the exported
// methods communicate with the loop over channels, so no locking protects
// the queue, the idle stack, or the pending table - single-threaded
// ownership does.
type Supervisor struct {
	size    int
	handler Handler
	log     zerolog.Logger

	submitC   chan *submitRequest
	events    chan workerEvent
	shutdownC chan chan struct{}
	statsC    chan chan Stats

	// down is closed when shutdown begins, stopped when the loop exits.
	down     chan struct{}
	stopped  chan struct{}
	downOnce sync.Once
}

type submitRequest struct {
	task  Task
	reply chan submitReply
}

type submitReply struct {
	handle *Handle
	err    error
}

// supervisorState is the loop-confined bookkeeping. Invariants: every id in
// assignment has a pending entry; every live worker is either on the idle
// stack or in assignment's domain, never both.
type supervisorState struct {
	units        map[*worker]struct{}
	idle         []*worker // LIFO stack
	queue        []Task    // FIFO
	pending      map[string]*Handle
	assignment   map[*worker]string
	shuttingDown bool
	nextWorkerID int
}

// NewSupervisor constructs a pool of size workers running handler and starts
// its dispatch loop. Size must be positive; use FromConfig for env-derived
// sizing and the unavailable fallback.
func NewSupervisor(size int, handler Handler, log zerolog.Logger) *Supervisor {
	s := &Supervisor{
		size:      size,
		handler:   handler,
		log:       log.With().Str("component", "analysis_pool").Logger(),
		submitC:   make(chan *submitRequest),
		events:    make(chan workerEvent, size*2),
		shutdownC: make(chan chan struct{}),
		statsC:    make(chan chan Stats),
		down:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	go s.run()
	return s
}

// Size returns the configured worker count.
func (s *Supervisor) Size() int {
	return s.size
}

// Submit enqueues a task and returns a handle that resolves exactly once
// with the eventual result or error. Submit itself never blocks on task
// execution; it only waits for the supervisor loop to register the task.
// Once shutdown has begun it fails immediately with ErrShuttingDown and no
// pending entry is created.
func (s *Supervisor) Submit(taskType TaskType, payload []byte) (*Handle, error) {
	req := &submitRequest{
		task: Task{
			ID:      uuid.NewString(),
			Type:    taskType,
			Payload: payload,
		},
		reply: make(chan submitReply, 1),
	}

	select {
	case s.submitC <- req:
	case <-s.down:
		return nil, ErrShuttingDown
	}

	rep := <-req.reply
	return rep.handle, rep.err
}

// Shutdown stops the pool: every outstanding handle is rejected, the task
// queue is discarded, workers are asked to terminate, and no crashed worker
// is respawned afterward. Safe to call more than once; termination problems
// are swallowed - shutdown itself never fails.
func (s *Supervisor) Shutdown() {
	s.downOnce.Do(func() { close(s.down) })

	ack := make(chan struct{})
	select {
	case s.shutdownC <- ack:
		<-ack
	case <-s.stopped:
		// Loop already gone.
	}
}

// Done returns a channel closed once the loop and all workers have exited.
// Used by tests and the composition root to wait for full teardown.
func (s *Supervisor) Done() <-chan struct{} {
	return s.stopped
}

// Stats returns a snapshot of pool state, or the zero snapshot after the
// pool has fully stopped.
func (s *Supervisor) Stats() Stats {
	reply := make(chan Stats, 1)
	select {
	case s.statsC <- reply:
		return <-reply
	case <-s.stopped:
		return Stats{ShuttingDown: true}
	}
}

// run is the supervisor loop. It is the only goroutine that touches st.
func (s *Supervisor) run() {
	defer close(s.stopped)

	st := &supervisorState{
		units:      make(map[*worker]struct{}, s.size),
		pending:    make(map[string]*Handle),
		assignment: make(map[*worker]string),
	}

	for i := 0; i < s.size; i++ {
		s.spawn(st)
	}

	for {
		select {
		case req := <-s.submitC:
			s.handleSubmit(st, req)

		case ev := <-s.events:
			switch ev.kind {
			case eventResult:
				s.handleResult(st, ev)
			case eventExit:
				s.handleExit(st, ev)
			}
			// After shutdown the loop only lingers to reap worker exits.
			if st.shuttingDown && len(st.units) == 0 {
				return
			}

		case ack := <-s.shutdownC:
			s.handleShutdown(st)
			close(ack)
			if len(st.units) == 0 {
				return
			}

		case reply := <-s.statsC:
			reply <- Stats{
				Workers:      len(st.units),
				Idle:         len(st.idle),
				Queued:       len(st.queue),
				Pending:      len(st.pending),
				ShuttingDown: st.shuttingDown,
			}
		}
	}
}

// spawn creates a fresh worker, adds it to the unit set and the idle stack,
// and dispatches so it can immediately pick up queued work.
func (s *Supervisor) spawn(st *supervisorState) {
	st.nextWorkerID++
	w := newWorker(st.nextWorkerID, s.handler, s.events)
	st.units[w] = struct{}{}
	st.idle = append(st.idle, w)
	w.start()
	s.dispatch(st)
}

// dispatch matches queued tasks to idle workers: strict FIFO on the task
// side, LIFO on the worker side (workers are homogeneous, so worker choice
// carries no fairness requirement).
func (s *Supervisor) dispatch(st *supervisorState) {
	for len(st.queue) > 0 && len(st.idle) > 0 {
		w := st.idle[len(st.idle)-1]
		st.idle = st.idle[:len(st.idle)-1]

		task := st.queue[0]
		st.queue = st.queue[1:]

		st.assignment[w] = task.ID
		// The worker inbox has capacity one and the worker is idle, so this
		// send cannot block.
		w.tasks <- task
	}
}

func (s *Supervisor) handleSubmit(st *supervisorState, req *submitRequest) {
	if st.shuttingDown {
		req.reply <- submitReply{err: ErrShuttingDown}
		return
	}

	h := newHandle()
	st.pending[req.task.ID] = h
	st.queue = append(st.queue, req.task)
	s.dispatch(st)

	req.reply <- submitReply{handle: h}
}

// handleResult resolves the pending entry for a tagged result and returns
// the worker to the idle stack.
func (s *Supervisor) handleResult(st *supervisorState, ev workerEvent) {
	h, ok := st.pending[ev.taskID]
	if !ok {
		// Unrouted response: no caller is waiting (late result after
		// shutdown rejection, or a message without a known id). Drop it.
		s.log.Warn().Str("task", ev.taskID).Msg("Dropping unrouted worker response")
	} else {
		if ev.err != nil {
			h.reject(ev.err)
		} else {
			h.resolve(ev.value)
		}
		delete(st.pending, ev.taskID)
	}

	delete(st.assignment, ev.worker)
	if !st.shuttingDown {
		st.idle = append(st.idle, ev.worker)
		s.dispatch(st)
	}
}

// handleExit handles worker termination. A crash (or any exit outside
// shutdown) fails the held task, removes the unit's bookkeeping entirely,
// and respawns a replacement so the pool returns to its configured size.
func (s *Supervisor) handleExit(st *supervisorState, ev workerEvent) {
	crashed := ev.crashed || !st.shuttingDown

	if taskID, held := st.assignment[ev.worker]; held && crashed {
		if h, ok := st.pending[taskID]; ok {
			cause := ev.err
			if cause == nil {
				cause = ErrWorkerFailed
			}
			h.reject(cause)
			delete(st.pending, taskID)
		}
	}

	delete(st.units, ev.worker)
	delete(st.assignment, ev.worker)
	st.idle = removeWorker(st.idle, ev.worker)

	if st.shuttingDown {
		return
	}

	s.log.Warn().
		Int("worker", ev.worker.id).
		Err(ev.err).
		Msg("Worker terminated, respawning")
	s.spawn(st)
}

// handleShutdown rejects everything outstanding and asks all workers to
// terminate. The loop keeps running until the last exit event arrives.
func (s *Supervisor) handleShutdown(st *supervisorState) {
	if st.shuttingDown {
		return
	}
	st.shuttingDown = true

	s.log.Info().
		Int("pending", len(st.pending)).
		Int("queued", len(st.queue)).
		Msg("Analysis pool shutting down")

	for id, h := range st.pending {
		h.reject(ErrShuttingDown)
		delete(st.pending, id)
	}
	st.queue = nil
	st.idle = nil
	st.assignment = make(map[*worker]string)

	for w := range st.units {
		w.terminate()
	}
}

func removeWorker(idle []*worker, w *worker) []*worker {
	for i, cand := range idle {
		if cand == w {
			return append(idle[:i], idle[i+1:]...)
		}
	}
	return idle
}
