package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue once the queue is stopped or was never started.
var ErrQueueClosed = errors.New("queue closed")

// Task is a unit of background work.
type Task struct {
	Name     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a task. A returned error schedules a retry.
type Handler func(context.Context, Task) error

// Config configures the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Queue dispatches tasks to a fixed set of goroutines.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	tasks   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retries sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewQueue builds a queue. Call Start before enqueueing.
func NewQueue(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger.With(zap.String("queue", name)),
		tasks:      make(chan Task, cfg.BufferSize),
	}
}

// Start launches the workers. Subsequent calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop refuses new tasks, lets workers drain what is already buffered and waits for them.
// Pending retries are abandoned.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started || q.closed {
		q.closed = true
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.cancel()
	q.mu.Unlock()

	q.retries.Wait()
	close(q.tasks)
	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue buffers a task. It never blocks: a full buffer is reported as an error.
func (q *Queue) Enqueue(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.closed {
		return fmt.Errorf("%s: %w", q.name, ErrQueueClosed)
	}
	if task.Enqueued.IsZero() {
		task.Enqueued = time.Now().UTC()
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("%s: buffer full", q.name)
	}
}

func (q *Queue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		// Buffered tasks still run after Stop, so they get a context that is not cancelled.
		if err := q.handler(context.WithoutCancel(q.ctx), task); err != nil {
			q.retry(task, err)
		}
	}
}

func (q *Queue) retry(task Task, err error) {
	task.Attempt++
	if task.Attempt > q.maxRetries {
		q.logger.Error("task dropped after retries", zap.String("task", task.Name), zap.Int("attempts", task.Attempt), zap.Error(err))
		return
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("task failed during shutdown", zap.String("task", task.Name), zap.Error(err))
		return
	}
	q.logger.Warn("task failed, retrying", zap.String("task", task.Name), zap.Int("attempt", task.Attempt), zap.Error(err))

	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.logger.Warn("retry abandoned on shutdown", zap.String("task", task.Name))
		case <-timer.C:
			if err := q.Enqueue(task); err != nil {
				q.logger.Error("failed to requeue task", zap.String("task", task.Name), zap.Error(err))
			}
		}
	}()
}
