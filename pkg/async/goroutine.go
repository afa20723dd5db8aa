package async

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolodex/pkg/observability"
)

var (
	// ErrPoolClosed is returned when submitting to a pool that has been shut down
	ErrPoolClosed = errors.New("worker pool shut down")

	// ErrQueueFull is returned by TrySubmit when the queue has no free slot
	ErrQueueFull = errors.New("worker pool queue full")
)

// Task is a unit of work run by the pool under a per-task timeout
type Task func(context.Context) error

// WorkerPool manages a pool of workers that process tasks from a bounded queue.
// Provides graceful shutdown, panic recovery and error logging.
type WorkerPool struct {
	workers  int
	taskName string
	timeout  time.Duration
	logger   logrus.FieldLogger

	workCh chan Task
	doneCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

// NewWorkerPool creates a new worker pool and starts its workers.
// ctx only bounds running tasks; workers keep draining the queue until Shutdown.
//
// Example:
//
//	pool := NewWorkerPool(ctx, 4, 100, "email delivery", 30*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//
//	if err := pool.TrySubmit(func(ctx context.Context) error {
//	    return sender.Send(ctx, msg)
//	}); err != nil {
//	    // queue full or pool closed
//	}
func NewWorkerPool(ctx context.Context, workers, queueSize int, taskName string, timeout time.Duration, logger logrus.FieldLogger) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		logger:   logger.WithField("pool", taskName),
		workCh:   make(chan Task, queueSize),
		doneCh:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	// Start workers and wait for them to finish in background
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// TrySubmit adds a task without blocking. Returns ErrQueueFull when no slot is free.
func (p *WorkerPool) TrySubmit(fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits up to timeout for queued ones to drain.
// Running tasks are cancelled if the timeout elapses.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.workCh)
		p.mu.Unlock()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

func (p *WorkerPool) worker(id int) {
	// Queued tasks run until Shutdown closes the channel
	for fn := range p.workCh {
		p.run(id, fn)
	}
}

func (p *WorkerPool) run(id int, fn Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	logger := p.logger.WithField("worker", id)
	defer observability.RecoverPanic(logger, p.taskName)

	if err := fn(ctx); err != nil {
		logger.WithError(err).Warn("Worker task failed")
	}
}
