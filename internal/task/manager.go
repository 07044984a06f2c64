// Package task implements the bounded worker pool driving asynchronous
// units of work for the root scheduler.
//
// The pool owns a fixed number of worker slots. The coordinating thread
// checks HasIdleWorker before Submit and blocks only in WaitWorker, the
// single rendezvous where finished results are handed to the completion
// callback. Cancellation is an explicit token carried by the context
// given to each task at submission time.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"runctl/pkg/logging"
)

const logSubsystem = "task"

// ErrNoIdleWorker is returned by Submit when every worker slot is in
// flight. Callers must check HasIdleWorker first.
var ErrNoIdleWorker = errors.New("no idle worker available")

// Task is one asynchronous unit of work producing a result of type T.
type Task[T any] struct {
	ID   int
	Name string

	run func(ctx context.Context) T
	// onPanic maps a recovered panic to a result so one unit's failure
	// never aborts sibling units.
	onPanic func(rec any) T

	created time.Time
}

// New builds a task. onPanic may be nil when run cannot panic.
func New[T any](id int, name string, run func(ctx context.Context) T, onPanic func(rec any) T) *Task[T] {
	return &Task[T]{
		ID:      id,
		Name:    name,
		run:     run,
		onPanic: onPanic,
		created: time.Now(),
	}
}

func (t *Task[T]) String() string {
	return fmt.Sprintf("task %d (%s)", t.ID, t.Name)
}

// Manager is a fixed-capacity concurrent executor. It is driven from a
// single coordinating goroutine; only the completion callback and the
// cancellation token are shared across threads.
type Manager[T any] struct {
	workers  int
	callback func(T)

	inflight int
	results  chan completion[T]

	callbackMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

type completion[T any] struct {
	task    *Task[T]
	result  T
	elapsed time.Duration
}

// NewManager creates a pool with the given worker count (at least one)
// and completion callback. The callback runs on the coordinating
// goroutine, serialized by a mutex.
func NewManager[T any](workers int, callback func(T)) *Manager[T] {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager[T]{
		workers:  workers,
		callback: callback,
		results:  make(chan completion[T], workers),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// HasIdleWorker reports whether fewer than the worker count of units
// are in flight.
func (m *Manager[T]) HasIdleWorker() bool {
	return m.inflight < m.workers
}

// InFlight returns the number of units currently executing.
func (m *Manager[T]) InFlight() int {
	return m.inflight
}

// Cancel sets the process-wide cancellation token. It is never reset;
// in-flight tasks observe it through their context and exit early.
func (m *Manager[T]) Cancel() {
	m.cancel()
}

// Canceled reports whether cancellation has been signalled.
func (m *Manager[T]) Canceled() bool {
	return m.ctx.Err() != nil
}

// Context exposes the cancellation token so callers can pass it to
// cooperating collaborators.
func (m *Manager[T]) Context() context.Context {
	return m.ctx
}

// Submit schedules a task for concurrent execution. It rejects the
// task when no worker slot is idle.
func (m *Manager[T]) Submit(t *Task[T]) error {
	if !m.HasIdleWorker() {
		return fmt.Errorf("%w: %d in flight", ErrNoIdleWorker, m.inflight)
	}
	m.inflight++
	logging.Debug(logSubsystem, "submitted %s, %d in flight", t, m.inflight)

	go func() {
		started := time.Now()
		result := m.execute(t)
		m.results <- completion[T]{task: t, result: result, elapsed: time.Since(started)}
	}()
	return nil
}

func (m *Manager[T]) execute(t *Task[T]) (result T) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error(logSubsystem, fmt.Errorf("%v", rec), "%s panicked", t)
			if t.onPanic != nil {
				result = t.onPanic(rec)
			}
		}
	}()
	return t.run(m.ctx)
}

// WaitWorker blocks until at least one in-flight unit completes, then
// drains every finished unit into the completion callback. It returns
// whether any unit is still in flight.
func (m *Manager[T]) WaitWorker() bool {
	if m.inflight == 0 {
		return false
	}

	done := <-m.results
	m.deliver(done)

	// Drain whatever else finished meanwhile without blocking again.
	for {
		select {
		case done := <-m.results:
			m.deliver(done)
		default:
			return m.inflight > 0
		}
	}
}

func (m *Manager[T]) deliver(done completion[T]) {
	m.inflight--
	logging.Debug(logSubsystem, "%s finished after %s, %d in flight",
		done.task, done.elapsed.Round(time.Millisecond), m.inflight)

	m.callbackMu.Lock()
	defer m.callbackMu.Unlock()
	m.callback(done.result)
}
