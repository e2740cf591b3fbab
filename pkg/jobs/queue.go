package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of background work carrying a typed payload.
type Job[T any] struct {
	ID       string
	Type     string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler[T any] func(context.Context, Job[T]) error

// DeadLetter receives jobs that exhausted their retries.
type DeadLetter[T any] func(Job[T], error)

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// Queue is an in-memory job dispatcher backed by goroutines. Stop drains
// jobs already buffered before the workers exit.
type Queue[T any] struct {
	name       string
	handler    Handler[T]
	deadLetter DeadLetter[T]

	workers      int
	maxRetries   int
	retryDelay   time.Duration
	drainTimeout time.Duration
	logger       *zap.Logger

	jobs    chan Job[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	retries sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

// NewQueue builds a queue with the provided handler.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue[T]{
		name:         name,
		handler:      handler,
		workers:      cfg.Workers,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		drainTimeout: cfg.DrainTimeout,
		logger:       cfg.Logger.With(zap.String("queue", name)),
		jobs:         make(chan Job[T], cfg.BufferSize),
	}
}

// OnDeadLetter registers a callback for jobs that ran out of retries.
func (q *Queue[T]) OnDeadLetter(fn DeadLetter[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetter = fn
}

// Start begins worker consumption. Calls after the first are ignored.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.workers))
}

// Stop refuses new jobs, gives workers up to the drain timeout to finish the
// buffer, then cancels them and waits.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.mu.Unlock()

	deadline := time.NewTimer(q.drainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
drain:
	for len(q.jobs) > 0 {
		select {
		case <-deadline.C:
			q.logger.Warn("queue drain timed out", zap.Int("pending", len(q.jobs)))
			break drain
		case <-tick.C:
		}
	}
	q.cancel()
	q.wg.Wait()
	q.retries.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue pushes a job onto the queue without blocking past ctx.
func (q *Queue[T]) Enqueue(ctx context.Context, job Job[T]) error {
	q.mu.Lock()
	started, stopped := q.started, q.stopped
	qctx := q.ctx
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if stopped {
		return fmt.Errorf("queue %s is stopping", q.name)
	}
	return q.push(ctx, qctx, job)
}

// Pending reports the number of buffered jobs.
func (q *Queue[T]) Pending() int {
	return len(q.jobs)
}

func (q *Queue[T]) push(ctx, qctx context.Context, job Job[T]) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-qctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, qctx.Err())
	case q.jobs <- job:
		return nil
	}
}

func (q *Queue[T]) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			if err := q.handler(q.ctx, job); err != nil {
				q.handleFailure(job, err)
			}
		}
	}
}

func (q *Queue[T]) handleFailure(job Job[T], err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Error("job exceeded retries", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
		q.mu.Lock()
		deadLetter := q.deadLetter
		q.mu.Unlock()
		if deadLetter != nil {
			deadLetter(job, err)
		}
		return
	}
	q.logger.Warn("job failed, retrying", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err))

	q.retries.Add(1)
	go func(j Job[T]) {
		defer q.retries.Done()
		timer := time.NewTimer(q.retryDelay * time.Duration(j.Attempt))
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.push(q.ctx, q.ctx, j); err != nil {
				q.logger.Error("failed to requeue job", zap.String("job_id", j.ID), zap.Error(err))
			}
		}
	}(job)
}
