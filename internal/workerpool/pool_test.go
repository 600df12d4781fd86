package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func shutdown(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Shutdown(ctx)
}

func TestSubmitAndShutdown(t *testing.T) {
	p := New(2, 10)
	var count atomic.Int32

	for i := 0; i < 5; i++ {
		if err := p.Submit("count", func(context.Context) { count.Add(1) }); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	shutdown(t, p)

	if got := count.Load(); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	p := New(1, 1)
	shutdown(t, p)

	if err := p.Submit("late", func(context.Context) {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestQueueFull(t *testing.T) {
	p := New(1, 1)
	blocker := make(chan struct{})
	started := make(chan struct{})
	p.Submit("block", func(context.Context) {
		close(started)
		<-blocker
	})
	<-started
	p.Submit("queued", func(context.Context) {})

	if err := p.Submit("overflow", func(context.Context) {}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}

	close(blocker)
	shutdown(t, p)
}

func TestContextCancelledAfterDrain(t *testing.T) {
	p := New(1, 10)
	var seen atomic.Value
	p.Submit("ctx", func(ctx context.Context) { seen.Store(ctx.Err() == nil) })

	poolCtx := p.Context()
	shutdown(t, p)

	if seen.Load() != true {
		t.Fatal("task should see a live context")
	}
	if poolCtx.Err() == nil {
		t.Fatal("pool context should be cancelled after Drain")
	}
}

func TestDrainRespectsDeadline(t *testing.T) {
	p := New(1, 10)
	blocker := make(chan struct{})
	defer close(blocker)
	p.Submit("block", func(context.Context) { <-blocker })

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p.Drain(ctx)

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("Drain should time out in ~100ms, took %v", elapsed)
	}
}

func TestPanicRecovery(t *testing.T) {
	p := New(1, 10)
	var count atomic.Int32

	p.Submit("boom", func(context.Context) { panic("test panic") })
	p.Submit("after", func(context.Context) { count.Add(1) })
	shutdown(t, p)

	if got := count.Load(); got != 1 {
		t.Fatalf("task after panic: count = %d, want 1", got)
	}
	if p.Running() != 0 {
		t.Fatalf("Running = %d after shutdown", p.Running())
	}
}
