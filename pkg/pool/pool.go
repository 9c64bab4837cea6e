// Package pool provides the bounded worker pool used by the enrichment
// and embedding stages to fan work across goroutines.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/wolflogic/wolfmem/pkg/logger"
)

// Pool manages a fixed set of goroutines executing tasks of type T.
type Pool[T any] struct {
	maxWorkers int
	taskCh     chan T
	workerFn   func(T)
	log        logger.Logger

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	tasksProcessed atomic.Int64
}

// New creates a pool of maxWorkers goroutines running workerFn.
func New[T any](maxWorkers int, workerFn func(T)) *Pool[T] {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Pool[T]{
		maxWorkers: maxWorkers,
		taskCh:     make(chan T),
		workerFn:   workerFn,
		log:        logger.Global(),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the workers. Starting a running pool is a no-op.
func (p *Pool[T]) Start() {
	if p.running.Load() {
		return
	}
	p.running.Store(true)
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Stop drains queued tasks and waits for all workers to finish.
func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		p.running.Store(false)
		close(p.stopCh)
		p.wg.Wait()
	})
}

// Submit blocks until a worker accepts the task or the pool stops.
func (p *Pool[T]) Submit(task T) {
	if !p.running.Load() {
		return
	}
	select {
	case p.taskCh <- task:
	case <-p.stopCh:
	}
}

// TrySubmit submits without blocking; false means no worker was free.
func (p *Pool[T]) TrySubmit(task T) bool {
	if !p.running.Load() {
		return false
	}
	select {
	case p.taskCh <- task:
		return true
	default:
		return false
	}
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for {
		select {
		case task, ok := <-p.taskCh:
			if !ok {
				return
			}
			p.processTask(task)
		case <-p.stopCh:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case task := <-p.taskCh:
					p.processTask(task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool[T]) processTask(task T) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("worker panic recovered", "panic", r)
		}
	}()
	p.workerFn(task)
	p.tasksProcessed.Add(1)
}

// TasksProcessed returns the total number of tasks processed.
func (p *Pool[T]) TasksProcessed() int64 {
	return p.tasksProcessed.Load()
}

// IsRunning reports whether the pool has been started and not stopped.
func (p *Pool[T]) IsRunning() bool {
	return p.running.Load()
}
