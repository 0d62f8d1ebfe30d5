// Package workerpool provides the bounded goroutine pool the Orchestrator
// uses to dispatch one Worker invocation per discovered input file.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Task is one file's worth of work: Execute runs to a terminal state and
// must never be interrupted mid-write — ctx cancellation stops further
// dispatch, not in-flight execution, preserving the atomic-write invariant.
type Task struct {
	ID      string
	Execute func(ctx context.Context)
}

// Pool runs up to size Tasks concurrently. Unlike a generic worker pool,
// Execute has no error return: every Task is expected to catch and
// classify its own failures (the Worker boundary), so the pool only needs
// to track completion counts.
type Pool struct {
	size   int
	tasks  chan Task
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger

	dispatched int64
	completed  int64
}

var ErrPoolClosed = errors.New("workerpool: pool is closed")

// New creates a Pool of the given size and starts its goroutines
// immediately; callers submit work with Submit and call Wait when done
// enumerating input.
func New(size int, logger *logrus.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		size:   size,
		tasks:  make(chan Task, size*4),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.run(i)
	}

	return p
}

func (p *Pool) run(workerID int) {
	defer p.wg.Done()

	for task := range p.tasks {
		if p.ctx.Err() != nil {
			// Cancelled: drain the queue without starting the task.
			continue
		}
		atomic.AddInt64(&p.dispatched, 1)
		task.Execute(p.ctx)
		atomic.AddInt64(&p.completed, 1)
		p.logger.WithFields(logrus.Fields{
			"worker_id": workerID,
			"task_id":   task.ID,
		}).Debug("task completed")
	}
}

// Submit enqueues a Task. It blocks if every worker and the internal buffer
// is busy, which is the intended backpressure: the Orchestrator's
// discovery loop should not race ahead of the pool's capacity.
func (p *Pool) Submit(task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Cancel stops further dispatch of queued-but-not-started tasks. Tasks
// already running are not interrupted; Wait still blocks until they reach
// a terminal state, per the Orchestrator's cancellation policy.
func (p *Pool) Cancel() {
	p.cancel()
}

// Wait closes the submission channel and blocks until every running Task
// has returned. Call this only after the last Submit.
func (p *Pool) Wait() {
	close(p.tasks)
	p.wg.Wait()
}

// Stats reports a point-in-time snapshot of pool throughput.
type Stats struct {
	Size       int
	Dispatched int64
	Completed  int64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Size:       p.size,
		Dispatched: atomic.LoadInt64(&p.dispatched),
		Completed:  atomic.LoadInt64(&p.completed),
	}
}
