package workers

import (
	"context"
	"sync"
	"time"

	"boardgame-recommender/metrics"

	"go.uber.org/zap"
)

type task struct {
	name string
	fn   func(context.Context) error
}

// TaskQueue runs small fire-and-forget jobs (view-count bumps and the
// like) on a fixed pool of goroutines. Submit never blocks: when the
// buffer is full the task is dropped and the caller is told so.
type TaskQueue struct {
	tasks   chan task
	workers int
	timeout time.Duration
	logger  *zap.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewTaskQueue(workers, buffer int, timeout time.Duration, logger *zap.Logger) *TaskQueue {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TaskQueue{
		tasks:   make(chan task, buffer),
		workers: workers,
		timeout: timeout,
		logger:  logger.Named("tasks"),
	}
}

// Start launches the workers. They exit once Stop drains the queue.
func (q *TaskQueue) Start(ctx context.Context) {
	q.logger.Info("starting task queue", zap.Int("workers", q.workers), zap.Int("buffer", cap(q.tasks)))
	for range q.workers {
		q.wg.Add(1)
		go q.run(ctx)
	}
}

func (q *TaskQueue) run(ctx context.Context) {
	defer q.wg.Done()
	for t := range q.tasks {
		metrics.TaskQueueDepth.Set(float64(len(q.tasks)))
		q.execute(ctx, t)
	}
}

func (q *TaskQueue) execute(parent context.Context, t task) {
	// detached so a cancelled server context still lets queued work finish
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()

	if err := t.fn(ctx); err != nil {
		q.logger.Warn("task failed", zap.String("task", t.name), zap.Error(err))
	}
}

// Submit enqueues fn. It returns false when the queue is full or stopped.
func (q *TaskQueue) Submit(name string, fn func(context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.tasks <- task{name: name, fn: fn}:
		metrics.TaskQueueDepth.Set(float64(len(q.tasks)))
		return true
	default:
		return false
	}
}

// Stop refuses new work, runs what is queued and waits for the workers.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("task queue stopped")
}
