package pool

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ProcessesAll(t *testing.T) {
	var counter atomic.Int32

	p := New(2, func(n int) {
		counter.Add(int32(n))
		time.Sleep(5 * time.Millisecond)
	})
	p.Start()

	for i := 0; i < 10; i++ {
		p.Submit(1)
	}
	p.Stop()

	if counter.Load() != 10 {
		t.Errorf("expected 10 tasks processed, got %d", counter.Load())
	}
	if p.TasksProcessed() != 10 {
		t.Errorf("expected TasksProcessed 10, got %d", p.TasksProcessed())
	}
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	p := New(1, func(int) {})
	// Not started: submits are dropped rather than deadlocking.
	p.Submit(1)
	if p.IsRunning() {
		t.Error("pool should not be running before Start")
	}
	p.Start()
	if !p.IsRunning() {
		t.Error("pool should be running after Start")
	}
	p.Stop()
	if p.IsRunning() {
		t.Error("pool should not be running after Stop")
	}
}

func TestPool_TrySubmit(t *testing.T) {
	block := make(chan struct{})
	p := New(1, func(int) { <-block })
	p.Start()
	defer func() {
		close(block)
		p.Stop()
	}()

	// First task occupies the single worker.
	p.Submit(1)
	time.Sleep(10 * time.Millisecond)

	if ok := p.TrySubmit(2); ok {
		t.Error("TrySubmit should fail while the only worker is busy")
	}
}

func TestPool_PanicRecovered(t *testing.T) {
	var after atomic.Int32
	p := New(1, func(n int) {
		if n == 0 {
			panic("boom")
		}
		after.Add(1)
	})
	p.Start()
	p.Submit(0)
	p.Submit(1)
	p.Stop()

	if after.Load() != 1 {
		t.Errorf("worker did not survive panic, processed %d after", after.Load())
	}
}
