package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/carrier-reconciler/internal/store"
)

type stubEvaluator struct {
	got reconcile.EvaluateRequest
}

func (s *stubEvaluator) Evaluate(_ context.Context, req reconcile.EvaluateRequest) reconcile.Outcome {
	s.got = req
	threshold := decimal.NewFromInt(20)
	if req.Threshold.Valid {
		threshold = req.Threshold.Decimal
	}
	res := &entity.RunResult{
		Partner:            req.Partner,
		Meta:               entity.InvoiceMeta{Number: "INV-9"},
		Rows:               []entity.DeltaRow{{OrderID: "a", Delta: decimal.RequireFromString("4.5")}},
		DeltaSum:           decimal.RequireFromString("4.5"),
		ComparisonPossible: true,
	}
	return reconcile.Outcome{
		RunID:           "run-1",
		Partner:         req.Partner,
		State:           constants.RunStateSuccess,
		ParsedOK:        true,
		WithinThreshold: res.DeltaSum.LessThanOrEqual(threshold),
		Threshold:       threshold,
		Result:          res,
	}
}

type recorderFunc func(context.Context, reconcile.Outcome) error

func (f recorderFunc) Record(ctx context.Context, out reconcile.Outcome) error { return f(ctx, out) }

type stubRuns struct {
	runs []store.Run
	err  error
}

func (s stubRuns) ListRuns(_ context.Context, partner constants.Partner, limit int) ([]store.Run, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []store.Run
	for _, r := range s.runs {
		if partner == "" || r.Partner == partner {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func dial(t *testing.T, srv ReconcilerService) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	RegisterReconcilerServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestEvaluateOverGRPC(t *testing.T) {
	eval := &stubEvaluator{}
	var recorded []string
	rec := recorderFunc(func(_ context.Context, out reconcile.Outcome) error {
		recorded = append(recorded, out.RunID)
		return errors.New("disk full")
	})
	c := dial(t, NewReconcilerServer(eval, rec, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Evaluate(ctx, &EvaluateRequest{Partner: "Libero", Primary: []byte("xlsx"), Secondary: []byte("pdf"), Threshold: "4"})
	require.NoError(t, err)

	assert.Equal(t, constants.LiberoLogistics, eval.got.Partner)
	assert.Equal(t, []byte("pdf"), eval.got.Secondary)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, "4.50", resp.DeltaSum)
	assert.False(t, resp.WithinThreshold)
	assert.Equal(t, reconcile.ReactionOverdue, resp.Reaction)
	assert.Equal(t, "INV-9", resp.InvoiceNumber)
	require.Len(t, resp.Rows, 1)
	assert.True(t, resp.Rows[0].Delta.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, []string{"run-1"}, recorded)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	c := dial(t, NewReconcilerServer(&stubEvaluator{}, nil, nil, nil))
	ctx := context.Background()

	_, err := c.Evaluate(ctx, &EvaluateRequest{Partner: "dhl", Primary: []byte("x")})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Evaluate(ctx, &EvaluateRequest{Partner: "brenger"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Evaluate(ctx, &EvaluateRequest{Partner: "brenger", Primary: []byte("x"), Threshold: "twenty"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListRuns(t *testing.T) {
	runs := stubRuns{runs: []store.Run{
		{ID: "1", Partner: constants.Tadde, DeltaSum: decimal.RequireFromString("3"), State: constants.RunStateSuccess},
		{ID: "2", Partner: constants.Brenger, DeltaSum: decimal.Zero, State: constants.RunStateParseFailed},
	}}
	c := dial(t, NewReconcilerServer(&stubEvaluator{}, nil, runs, nil))

	resp, err := c.ListRuns(context.Background(), &ListRunsRequest{Partner: "tad"})
	require.NoError(t, err)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "1", resp.Runs[0].ID)
	assert.Equal(t, "3.00", resp.Runs[0].DeltaSum)

	resp, err = c.ListRuns(context.Background(), &ListRunsRequest{})
	require.NoError(t, err)
	assert.Len(t, resp.Runs, 2)
}

func TestListRunsErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewReconcilerServer(&stubEvaluator{}, nil, nil, nil).ListRuns(ctx, &ListRunsRequest{})
	assert.Equal(t, codes.Internal, status.Code(err))

	s := NewReconcilerServer(&stubEvaluator{}, nil, stubRuns{err: common.ErrNotFound}, nil)
	_, err = s.ListRuns(ctx, &ListRunsRequest{})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.ListRuns(ctx, &ListRunsRequest{Partner: "ups"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
