// Package async runs reconciliations on a bounded worker pool.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one invoice waiting to be reconciled.
type Job struct {
	ID          uuid.UUID
	Source      string // file path or caller tag, for logs only
	Request     reconcile.EvaluateRequest
	SubmittedAt time.Time
}

// Evaluator is satisfied by *reconcile.Orchestrator.
type Evaluator interface {
	Evaluate(ctx context.Context, req reconcile.EvaluateRequest) reconcile.Outcome
}

// Sink receives every finished outcome, in registration order.
type Sink interface {
	Handle(ctx context.Context, job Job, out reconcile.Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, job Job, out reconcile.Outcome) error

func (f SinkFunc) Handle(ctx context.Context, job Job, out reconcile.Outcome) error {
	return f(ctx, job, out)
}

type RunQueue struct {
	eval        Evaluator
	sinks       []Sink
	logger      *slog.Logger
	workers     int
	timeout     time.Duration
	sinkTimeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*RunQueue)

func WithWorkers(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *RunQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithSinkTimeout bounds the sink fan-out of one job. Sinks get a fresh
// context so a slow evaluation does not starve them.
func WithSinkTimeout(d time.Duration) Option {
	return func(q *RunQueue) {
		if d > 0 {
			q.sinkTimeout = d
		}
	}
}

func WithSinks(sinks ...Sink) Option {
	return func(q *RunQueue) { q.sinks = append(q.sinks, sinks...) }
}

func NewRunQueue(eval Evaluator, logger *slog.Logger, opts ...Option) *RunQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RunQueue{
		eval:        eval,
		logger:      logger,
		workers:     4,
		timeout:     3 * time.Minute,
		sinkTimeout: 30 * time.Second,
		ch:          make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RunQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.process(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *RunQueue) process(workerID int, job Job) {
	log := q.logger.With("worker_id", workerID, "job_id", job.ID.String(), "partner", string(job.Request.Partner))
	out := q.evaluate(job)
	if out.Failed() {
		log.Warn("queue.job.failed", "source", job.Source, "state", string(out.State), "error", out.Err)
	} else {
		log.Info("queue.job.ok", "source", job.Source, "run_id", out.RunID, "within_threshold", out.WithinThreshold,
			"wait_ms", time.Since(job.SubmittedAt).Milliseconds())
	}
	if len(q.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), q.sinkTimeout)
	defer cancel()
	for _, s := range q.sinks {
		if err := s.Handle(ctx, job, out); err != nil {
			log.Error("queue.sink.failed", "run_id", out.RunID, "error", err)
		}
	}
}

func (q *RunQueue) evaluate(job Job) reconcile.Outcome {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	return q.eval.Evaluate(ctx, job.Request)
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *RunQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.job.queued", "job_id", job.ID.String(), "source", job.Source)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "job_id", job.ID.String(), "capacity", cap(q.ch))
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs, or for ctx.
func (q *RunQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.ok")
	}
}
