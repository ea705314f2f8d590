// Package executor provides the shared worker pool that runs all background
// tasks: folder changes, internal folder sets and periodic pollers. The pool
// is an explicitly constructed, explicitly injected service with a bounded
// number of workers, an unbounded FIFO queue and a two-phase drain on
// shutdown (graceful wait, forced cancel, second bounded wait).
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/logging"
)

// Task is a unit of work. The context is cancelled when the task is
// cancelled with interrupt or when the pool enters forced shutdown; tasks
// should check it around blocking I/O and exit promptly.
type Task func(ctx context.Context)

// State of a task handle.
type State string

const (
	StatePending   State = "pending"   // queued, not yet picked up by a worker
	StateRunning   State = "running"   // executing on a worker
	StateDone      State = "done"      // finished (for periodic: stopped after cancel)
	StateCancelled State = "cancelled" // cancelled before it ran
)

// Handle tracks one submitted task (or one periodic task across its runs).
type Handle struct {
	name     string
	fn       Task
	periodic bool
	period   time.Duration

	mu        sync.Mutex
	state     State
	cancelled bool               // cancel requested; periodic tasks stop rescheduling
	cancelRun context.CancelFunc // set while running
	timer     *time.Timer        // pending periodic re-arm
	done      chan struct{}
}

// State returns the handle's current state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done returns a channel closed when the task reaches a terminal state. For
// periodic tasks this is after cancellation (or pool shutdown) takes effect.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel requests cancellation. A pending task is dropped from the queue; a
// running task keeps running unless allowInterrupt is set, in which case its
// context is cancelled. Periodic tasks additionally stop rescheduling.
// Returns true if the request had any effect.
func (h *Handle) Cancel(allowInterrupt bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateDone || h.state == StateCancelled || h.cancelled {
		return false
	}
	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}

	switch h.state {
	case StatePending:
		// The worker skips cancelled handles; finish() runs on dequeue.
		return true
	case StateRunning:
		if allowInterrupt && h.cancelRun != nil {
			h.cancelRun()
		}
		return true
	}
	return true
}

// finish transitions to a terminal state and closes done. Idempotent.
func (h *Handle) finish(s State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDone || h.state == StateCancelled {
		return
	}
	h.state = s
	close(h.done)
}

// Executor is the shared worker pool.
type Executor struct {
	logger *logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*Handle
	shutdown bool
	forced   bool

	// contexts of currently running tasks, for forced drain
	running map[*Handle]context.CancelFunc

	// counts queued + running tasks; Shutdown waits on it
	inflight sync.WaitGroup

	workers sync.WaitGroup
}

// New creates a pool with the given number of workers and starts them.
// workers <= 0 falls back to constants.DefaultWorkers.
func New(workers int, logger *logging.Logger) *Executor {
	if workers <= 0 {
		workers = constants.DefaultWorkers
	}
	e := &Executor{
		logger:  logger,
		running: make(map[*Handle]context.CancelFunc),
	}
	e.cond = sync.NewCond(&e.mu)

	e.workers.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

// Submit enqueues a one-shot task. It never blocks the caller; if all
// workers are busy the task waits in the unbounded queue. Returns nil after
// Shutdown has been called.
func (e *Executor) Submit(name string, fn Task) *Handle {
	h := &Handle{
		name:  name,
		fn:    fn,
		state: StatePending,
		done:  make(chan struct{}),
	}
	if !e.enqueue(h) {
		return nil
	}
	return h
}

// ScheduleWithFixedDelay runs fn repeatedly with a fixed delay between the
// end of one run and the start of the next. A panicking run is logged and
// does not cancel future runs. Returns nil after Shutdown has been called.
func (e *Executor) ScheduleWithFixedDelay(name string, fn Task, initialDelay, period time.Duration) *Handle {
	h := &Handle{
		name:     name,
		fn:       fn,
		periodic: true,
		period:   period,
		state:    StatePending,
		done:     make(chan struct{}),
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if initialDelay <= 0 {
		if !e.enqueue(h) {
			return nil
		}
		return h
	}

	h.mu.Lock()
	h.timer = time.AfterFunc(initialDelay, func() { e.enqueue(h) })
	h.mu.Unlock()
	return h
}

// enqueue appends the handle to the run queue. Returns false if the pool is
// shut down, in which case the handle is finished as cancelled.
func (e *Executor) enqueue(h *Handle) bool {
	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		h.finish(StateCancelled)
		return false
	}

	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		e.mu.Unlock()
		h.finish(StateCancelled)
		return false
	}
	h.state = StatePending
	h.timer = nil
	h.mu.Unlock()

	e.inflight.Add(1)
	e.queue = append(e.queue, h)
	e.cond.Signal()
	e.mu.Unlock()
	return true
}

func (e *Executor) worker() {
	defer e.workers.Done()

	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.shutdown {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && e.shutdown {
			e.mu.Unlock()
			return
		}
		h := e.queue[0]
		e.queue = e.queue[1:]

		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			e.mu.Unlock()
			h.finish(StateCancelled)
			e.inflight.Done()
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		h.state = StateRunning
		h.cancelRun = cancel
		h.mu.Unlock()

		e.running[h] = cancel
		forced := e.forced
		e.mu.Unlock()

		if forced {
			// Forced drain began while this task was queued.
			cancel()
		}

		e.runOne(ctx, h)

		e.mu.Lock()
		delete(e.running, h)
		e.mu.Unlock()

		h.mu.Lock()
		h.cancelRun = nil
		rearm := h.periodic && !h.cancelled
		h.mu.Unlock()
		cancel()

		if rearm {
			e.mu.Lock()
			stopping := e.shutdown
			e.mu.Unlock()
			if !stopping {
				h.mu.Lock()
				h.state = StatePending
				h.timer = time.AfterFunc(h.period, func() { e.enqueue(h) })
				h.mu.Unlock()
				e.inflight.Done()
				continue
			}
		}

		h.finish(StateDone)
		e.inflight.Done()
	}
}

// runOne executes the task with panic recovery. A task failure never crashes
// the pool or affects other tasks.
func (e *Executor) runOne(ctx context.Context, h *Handle) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("task", h.name).Interface("panic", r).
				Msg("Task panicked")
		}
	}()
	h.fn(ctx)
}

// Shutdown stops accepting new work and drains the pool in two phases:
// a graceful wait of up to timeout for in-flight work, then forced
// cancellation of everything still running or queued and a second wait of up
// to timeout. Returns whether full termination was achieved. Tasks blocked
// in uninterruptible I/O are left to run to completion; there is no forced
// goroutine kill.
func (e *Executor) Shutdown(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = constants.ShutdownTimeout
	}

	e.mu.Lock()
	if e.shutdown {
		e.mu.Unlock()
		return e.awaitInflight(timeout)
	}
	e.shutdown = true
	e.cond.Broadcast()
	e.mu.Unlock()

	if e.awaitInflight(timeout) {
		e.workers.Wait()
		return true
	}

	// Phase two: cancel whatever is still running and drop the queue.
	e.mu.Lock()
	e.forced = true
	for _, cancel := range e.running {
		cancel()
	}
	pending := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, h := range pending {
		h.Cancel(false)
		h.finish(StateCancelled)
		e.inflight.Done()
	}

	if e.awaitInflight(timeout) {
		e.workers.Wait()
		return true
	}

	e.logger.Warn().Msg("Executor did not terminate")
	return false
}

// awaitInflight waits for all queued and running tasks with a deadline.
func (e *Executor) awaitInflight(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
