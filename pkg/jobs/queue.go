// Package jobs runs background work on an in-process worker pool.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned when the buffer has no room; callers may run the job inline.
	ErrQueueFull = errors.New("jobs: queue full")
	// ErrQueueClosed is returned once Stop has begun or before Start.
	ErrQueueClosed = errors.New("jobs: queue closed")
)

// Job is one unit of background work.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job. A returned error schedules a retry.
type Handler func(context.Context, Job) error

// Mux routes jobs to handlers by Type.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: map[string]Handler{}}
}

// Handle registers h for every listed job type.
func (m *Mux) Handle(h Handler, types ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range types {
		m.handlers[t] = h
	}
}

// Dispatch is a Handler that forwards to the registered handler.
func (m *Mux) Dispatch(ctx context.Context, job Job) error {
	m.mu.RLock()
	h, ok := m.handlers[job.Type]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("jobs: no handler for %q", job.Type)
	}
	return h(ctx, job)
}

// QueueConfig configures the worker pool.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Stats are running totals for a queue.
type Stats struct {
	Processed uint64
	Failed    uint64
	Dropped   uint64
}

// Queue dispatches jobs to a fixed number of workers. Stop stops intake and
// lets workers finish what is already buffered.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger

	jobs     chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	workers  sync.WaitGroup
	retries  sync.WaitGroup
	mu       sync.RWMutex
	started  bool
	stopping bool

	processed atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. Later calls are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.work()
	}
	q.started = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers), zap.Int("buffer", q.cfg.BufferSize))
}

// Stop refuses new jobs, drains the buffer and waits for workers, or gives up
// when ctx ends.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.started || q.stopping {
		q.mu.Unlock()
		return nil
	}
	q.stopping = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.retries.Wait()
		close(q.jobs)
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		q.logger.Info("queue drained", zap.Uint64("processed", q.processed.Load()), zap.Uint64("failed", q.failed.Load()))
		return nil
	case <-ctx.Done():
		q.cancel()
		return fmt.Errorf("queue %s: stop: %w", q.name, ctx.Err())
	}
}

// Enqueue buffers job without blocking. Empty IDs get a uuid.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.started || q.stopping {
		return ErrQueueClosed
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stats returns the running totals.
func (q *Queue) Stats() Stats {
	return Stats{Processed: q.processed.Load(), Failed: q.failed.Load(), Dropped: q.dropped.Load()}
}

func (q *Queue) work() {
	defer q.workers.Done()
	for job := range q.jobs {
		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("job panicked", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Any("panic", r))
		}
	}()
	err := q.handler(q.ctx, job)
	if err == nil {
		q.processed.Add(1)
		return
	}
	job.Attempt++
	if job.Attempt > q.cfg.MaxRetries {
		q.failed.Add(1)
		q.logger.Error("job exceeded retries", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempts", job.Attempt), zap.Error(err))
		return
	}
	q.logger.Warn("job failed, retrying", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err))
	q.retry(job)
}

// retry re-buffers job after an exponential delay. Retries still pending when
// Stop begins are waited for before the buffer closes.
func (q *Queue) retry(job Job) {
	q.mu.RLock()
	stopping := q.stopping
	if !stopping {
		q.retries.Add(1)
	}
	q.mu.RUnlock()
	if stopping {
		q.failed.Add(1)
		q.logger.Warn("dropping retry during shutdown", zap.String("job_id", job.ID))
		return
	}

	delay := q.cfg.RetryDelay << (job.Attempt - 1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.failed.Add(1)
		case <-timer.C:
			select {
			case q.jobs <- job:
			default:
				q.failed.Add(1)
				q.logger.Error("failed to requeue job", zap.String("job_id", job.ID), zap.Error(ErrQueueFull))
			}
		}
	}()
}
