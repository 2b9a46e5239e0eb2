package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
)

type countingEvaluator struct {
	calls atomic.Int32
	block chan struct{}
}

func (e *countingEvaluator) Evaluate(_ context.Context, req reconcile.EvaluateRequest) reconcile.Outcome {
	if e.block != nil {
		<-e.block
	}
	e.calls.Add(1)
	return reconcile.Outcome{RunID: "run", Partner: req.Partner, State: constants.RunStateSuccess, ParsedOK: true}
}

type recordingSink struct {
	mu   sync.Mutex
	seen []constants.Partner
}

func (s *recordingSink) Handle(_ context.Context, _ Job, out reconcile.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, out.Partner)
	return nil
}

func TestRunQueueProcessesEveryJob(t *testing.T) {
	eval := &countingEvaluator{}
	sink := &recordingSink{}
	q := NewRunQueue(eval, nil, WithWorkers(3), WithSinks(sink))

	for _, p := range constants.Partners() {
		require.NoError(t, q.Enqueue(context.Background(), Job{Request: reconcile.EvaluateRequest{Partner: p}}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	assert.EqualValues(t, len(constants.Partners()), eval.calls.Load())
	assert.ElementsMatch(t, constants.Partners(), sink.seen)
}

func TestRunQueueRejectsAfterShutdown(t *testing.T) {
	q := NewRunQueue(&countingEvaluator{}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestRunQueueBackpressureHonoursContext(t *testing.T) {
	eval := &countingEvaluator{block: make(chan struct{})}
	q := NewRunQueue(eval, nil, WithWorkers(1), WithQueueSize(1))

	// one job held by the worker, one filling the buffer
	require.NoError(t, q.Enqueue(context.Background(), Job{}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{}), context.DeadlineExceeded)

	close(eval.block)
	q.Shutdown(context.Background())
	assert.EqualValues(t, 2, eval.calls.Load())
}

type deadlineEvaluator struct{}

func (deadlineEvaluator) Evaluate(ctx context.Context, req reconcile.EvaluateRequest) reconcile.Outcome {
	<-ctx.Done()
	return reconcile.Outcome{Partner: req.Partner, State: constants.RunStateResolutionFailed, Err: ctx.Err()}
}

func TestSinksOutliveEvaluationTimeout(t *testing.T) {
	var (
		mu      sync.Mutex
		sinkErr error
		called  bool
	)
	sink := SinkFunc(func(ctx context.Context, _ Job, _ reconcile.Outcome) error {
		mu.Lock()
		defer mu.Unlock()
		called = true
		sinkErr = ctx.Err()
		return nil
	})
	q := NewRunQueue(deadlineEvaluator{}, nil, WithWorkers(1), WithProcessTimeout(10*time.Millisecond), WithSinks(sink))

	require.NoError(t, q.Enqueue(context.Background(), Job{Request: reconcile.EvaluateRequest{Partner: constants.Tadde}}))
	q.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.True(t, called)
	assert.NoError(t, sinkErr, "sink context is independent of the evaluation deadline")
}

func TestSinkFunc(t *testing.T) {
	var got string
	s := SinkFunc(func(_ context.Context, job Job, _ reconcile.Outcome) error {
		got = job.Source
		return nil
	})
	require.NoError(t, s.Handle(context.Background(), Job{Source: "inbox/a.pdf"}, reconcile.Outcome{}))
	assert.Equal(t, "inbox/a.pdf", got)
}
