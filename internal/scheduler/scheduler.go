// Package scheduler runs delayed and repeating tasks measured in server ticks.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codelanx/plugintemplate/internal/logging"
	"github.com/codelanx/plugintemplate/internal/workerpool"
)

var log = logging.L("scheduler")

// TickDuration is the length of one server tick (20 ticks per second).
const TickDuration = 50 * time.Millisecond

var ErrShutdown = errors.New("scheduler: shut down")

// Ticks converts a tick count to a duration; negative counts are zero.
func Ticks(n int) time.Duration {
	if n < 0 {
		return 0
	}
	return time.Duration(n) * TickDuration
}

type Scheduler struct {
	pool *workerpool.Pool

	mu     sync.Mutex
	tasks  map[int]*Task
	nextID int
	closed bool
}

// New schedules onto pool. Shutdown drains it.
func New(pool *workerpool.Pool) *Scheduler {
	return &Scheduler{pool: pool, tasks: make(map[int]*Task)}
}

// Task is a handle to a scheduled function.
type Task struct {
	id        int
	name      string
	period    time.Duration
	fn        workerpool.Task
	s         *Scheduler
	timer     *time.Timer
	cancelled atomic.Bool
	runs      atomic.Int64
}

func (t *Task) ID() int { return t.id }
func (t *Task) Name() string { return t.name }
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Runs counts how many times the task has been handed to the pool.
func (t *Task) Runs() int64 { return t.runs.Load() }

// Cancel stops future runs. A run already handed to the pool still completes.
func (t *Task) Cancel() {
	if t.cancelled.Swap(true) {
		return
	}
	t.s.mu.Lock()
	t.timer.Stop()
	t.s.mu.Unlock()
	t.s.remove(t.id)
}

// RunTaskLater runs fn once after delayTicks.
func (s *Scheduler) RunTaskLater(name string, delayTicks int, fn workerpool.Task) (*Task, error) {
	return s.schedule(name, Ticks(delayTicks), 0, fn)
}

// RunTaskTimer runs fn after delayTicks and then every periodTicks until
// cancelled. periodTicks below one is treated as one.
func (s *Scheduler) RunTaskTimer(name string, delayTicks, periodTicks int, fn workerpool.Task) (*Task, error) {
	if periodTicks < 1 {
		periodTicks = 1
	}
	return s.schedule(name, Ticks(delayTicks), Ticks(periodTicks), fn)
}

func (s *Scheduler) schedule(name string, delay, period time.Duration, fn workerpool.Task) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrShutdown
	}

	s.nextID++
	t := &Task{id: s.nextID, name: name, period: period, fn: fn, s: s}
	s.tasks[t.id] = t
	t.timer = time.AfterFunc(delay, t.fire)

	log.Debug("task scheduled", "task", name, "id", t.id, "delay", delay, "period", period)
	return t, nil
}

func (t *Task) fire() {
	if t.cancelled.Load() {
		return
	}
	t.runs.Add(1)
	if err := t.s.pool.Submit(t.name, t.fn); err != nil {
		log.Warn("scheduled task dropped", "task", t.name, logging.KeyError, err)
	}

	if t.period == 0 {
		t.cancelled.Store(true)
		t.s.remove(t.id)
		return
	}
	t.s.mu.Lock()
	if !t.cancelled.Load() {
		t.timer.Reset(t.period)
	}
	t.s.mu.Unlock()
}

func (s *Scheduler) remove(id int) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

// Pending reports tasks that are still waiting to fire or repeating.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// CancelAll cancels every pending task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	for _, t := range tasks {
		t.Cancel()
	}
}

// Shutdown cancels pending tasks, refuses new ones and waits for running
// tasks until ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.CancelAll()
	s.pool.Shutdown(ctx)
}
