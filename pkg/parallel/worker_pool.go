// Package parallel provides a bounded worker pool that runs computations on
// dedicated goroutines, isolated from the caller by panic recovery.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-graphmetrics/pkg/logging"
)

var (
	// ErrPoolClosed is returned when submitting to a closed pool
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrTaskPanicked wraps a panic recovered from a task run through Do
	ErrTaskPanicked = errors.New("task panicked")
)

// MaxWorkers is the maximum number of workers allowed in a pool
const MaxWorkers = 1024

// ErrTooManyWorkers is returned when the worker count exceeds MaxWorkers
var ErrTooManyWorkers = fmt.Errorf("worker count exceeds maximum of %d", MaxWorkers)

// WorkerPool manages a pool of worker goroutines
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	once      sync.Once
	mu        sync.RWMutex // Protects taskQueue from concurrent close during send
	closed    bool         // Protected by mu
	logger    logging.Logger
}

// NewWorkerPool creates a pool with the given number of workers and a queue of
// the same depth. A non-positive count means one worker.
func NewWorkerPool(workers int, logger logging.Logger) (*WorkerPool, error) {
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyWorkers, workers)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	pool := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers),
		logger:    logger.With(logging.Component("worker-pool")),
	}
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}
	return pool, nil
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					wp.logger.Error("task panic recovered", logging.Int("worker", id), logging.Any("panic", fmt.Sprint(r)))
				}
			}()
			task()
		}()
	}
}

// Workers returns the number of worker goroutines
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// Submit queues a task, blocking while the queue is full.
// Returns false if the pool is closed.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}
	wp.taskQueue <- task
	return true
}

// Do runs fn on a pool worker and waits for it. If ctx ends before a worker
// picks the task up, the task is abandoned and ctx's error returned; once
// running, fn is expected to observe ctx itself. A panic in fn is returned as
// ErrTaskPanicked.
func (wp *WorkerPool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	task := func() {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		done <- fn(ctx)
	}

	wp.mu.RLock()
	if wp.closed {
		wp.mu.RUnlock()
		return ErrPoolClosed
	}
	select {
	case wp.taskQueue <- task:
		wp.mu.RUnlock()
	case <-ctx.Done():
		wp.mu.RUnlock()
		return ctx.Err()
	}

	return <-done
}

// Close stops accepting tasks and waits for queued ones to finish
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskQueue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}
