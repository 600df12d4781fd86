// Package workerpool runs plugin tasks off the caller's goroutine on a fixed
// set of workers.
package workerpool

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/codelanx/plugintemplate/internal/logging"
)

var log = logging.L("workerpool")

var (
	ErrStopped   = errors.New("workerpool: stopped")
	ErrQueueFull = errors.New("workerpool: queue full")
)

// Task receives the pool context, which is cancelled once the pool shuts down.
type Task func(ctx context.Context)

type job struct {
	name string
	run  Task
}

type Pool struct {
	mu        sync.RWMutex // guards sends on queue against its close
	queue     chan job
	wg        sync.WaitGroup
	accepting atomic.Bool
	running   atomic.Int32
	stopOnce  sync.Once
	closeOnce sync.Once
	stopChan  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:    make(chan job, queueSize),
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Debug("worker pool started", "workers", workers, "queueSize", queueSize)
	return p
}

// Submit enqueues task under name, which is only used in logs.
func (p *Pool) Submit(name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.accepting.Load() {
		return ErrStopped
	}

	// Add before enqueueing so Drain cannot observe a zero counter while the
	// job sits in the queue.
	p.wg.Add(1)
	select {
	case p.queue <- job{name: name, run: task}:
		return nil
	default:
		p.wg.Done()
		log.Warn("worker pool queue full, task rejected", "task", name)
		return ErrQueueFull
	}
}

// Context is cancelled when the pool is drained.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Running reports how many tasks are executing right now.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain stops accepting work and waits for queued and running tasks until ctx
// expires. The pool context is cancelled and workers exit afterwards.
func (p *Pool) Drain(ctx context.Context) {
	p.StopAccepting()
	p.stopOnce.Do(func() {
		close(p.stopChan)
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug("worker pool drained")
	case <-ctx.Done():
		log.Warn("worker pool drain timed out", "running", p.Running())
	}

	p.cancel()
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.queue)
		p.mu.Unlock()
	})
}

// Shutdown is StopAccepting followed by Drain.
func (p *Pool) Shutdown(ctx context.Context) {
	p.StopAccepting()
	p.Drain(ctx)
}

func (p *Pool) worker() {
	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			p.runJob(j)
		case <-p.stopChan:
			for {
				select {
				case j, ok := <-p.queue:
					if !ok {
						return
					}
					p.runJob(j)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) runJob(j job) {
	p.running.Add(1)
	defer p.wg.Done()
	defer p.running.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "task", j.name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	j.run(p.ctx)
}
