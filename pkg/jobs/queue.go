package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job carries one unit of background work with a typed payload.
type Job[T any] struct {
	ID       string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A non-nil error schedules a retry.
type Handler[T any] func(context.Context, Job[T]) error

// Config tunes the worker pool. OnDiscard, when set, receives jobs that
// exhausted their retries together with the last handler error.
type Config[T any] struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	OnDiscard  func(Job[T], error)
	Logger     *zap.Logger
}

// Queue is an in-memory dispatcher running a fixed pool of goroutine
// workers over a buffered channel. Failed jobs are redelivered with a
// delay that grows linearly with the attempt count, so handlers must be
// idempotent across deliveries.
type Queue[T any] struct {
	name    string
	handler Handler[T]

	workers    int
	maxRetries int
	retryDelay time.Duration
	onDiscard  func(Job[T], error)
	logger     *zap.Logger

	jobs    chan Job[T]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New builds a queue with the provided handler.
func New[T any](name string, handler Handler[T], cfg Config[T]) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue[T]{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		onDiscard:  cfg.OnDiscard,
		logger:     cfg.Logger,
		jobs:       make(chan Job[T], cfg.BufferSize),
	}
}

// Start begins worker consumption. Safe to call once.
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
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers)
}

// Stop cancels workers and waits for them to exit. Buffered jobs that
// have not been picked up are dropped.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.cancel()
	q.mu.Unlock()
	q.wg.Wait()
	q.logger.Sugar().Infow("queue stopped", "queue", q.name)
}

// Enqueue submits a job for delivery. It blocks while the buffer is
// full and fails once the queue is stopped.
func (q *Queue[T]) Enqueue(job Job[T]) error {
	q.mu.Lock()
	ctx := q.ctx
	started := q.started
	q.mu.Unlock()

	if !started {
		return fmt.Errorf("queue %s not started", q.name)
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("queue %s stopped: %w", q.name, ctx.Err())
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
				q.redeliver(job, err)
			}
		}
	}
}

// redeliver schedules a failed job for another attempt. The delay grows
// with the attempt count so a struggling downstream gets breathing room.
func (q *Queue[T]) redeliver(job Job[T], err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job discarded after retries", "queue", q.name, "job_id", job.ID, "attempts", job.Attempt, "error", err)
		if q.onDiscard != nil {
			q.onDiscard(job, err)
		}
		return
	}
	q.logger.Sugar().Warnw("job failed, redelivering", "queue", q.name, "job_id", job.ID, "attempt", job.Attempt, "error", err)

	delay := time.Duration(job.Attempt) * q.retryDelay
	go func(j Job[T]) {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			return
		case <-timer.C:
			if err := q.Enqueue(j); err != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", err)
			}
		}
	}(job)
}
