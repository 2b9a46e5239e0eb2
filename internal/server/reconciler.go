// Package server exposes the reconciler over gRPC.
package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/carrier-reconciler/internal/store"
)

type Evaluator interface {
	Evaluate(ctx context.Context, req reconcile.EvaluateRequest) reconcile.Outcome
}

// Recorder persists or forwards a finished outcome.
type Recorder interface {
	Record(ctx context.Context, out reconcile.Outcome) error
}

type RunLister interface {
	ListRuns(ctx context.Context, partner constants.Partner, limit int) ([]store.Run, error)
}

type ReconcilerServer struct {
	eval     Evaluator
	recorder Recorder
	runs     RunLister
	logger   *slog.Logger
}

// NewReconcilerServer builds the service. recorder and runs may be nil.
func NewReconcilerServer(eval Evaluator, recorder Recorder, runs RunLister, logger *slog.Logger) *ReconcilerServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcilerServer{eval: eval, recorder: recorder, runs: runs, logger: logger}
}

func (s *ReconcilerServer) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	v := common.NewValidator().
		Field("partner", req.Partner, common.Required).
		Field("primary", req.Primary, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	partner, ok := constants.ParsePartner(req.Partner)
	if !ok {
		return nil, common.ToStatus(&common.UnsupportedPartnerError{Partner: req.Partner})
	}
	in := reconcile.EvaluateRequest{Partner: partner, Primary: req.Primary, Secondary: req.Secondary}
	if t := strings.TrimSpace(req.Threshold); t != "" {
		d, err := decimal.NewFromString(t)
		if err != nil {
			return nil, common.InvalidArgumentErrorf("threshold %q is not a decimal", t)
		}
		in.Threshold = decimal.NewNullDecimal(d)
	}

	out := s.eval.Evaluate(ctx, in)
	if s.recorder != nil {
		if err := s.recorder.Record(ctx, out); err != nil {
			s.logger.Error("server.evaluate.record_failed", "run_id", out.RunID, "error", err)
		}
	}
	s.logger.Info("server.evaluate.ok", "run_id", out.RunID, "partner", string(partner), "state", string(out.State))
	return toResponse(out), nil
}

func (s *ReconcilerServer) ListRuns(ctx context.Context, req *ListRunsRequest) (*ListRunsResponse, error) {
	if s.runs == nil {
		return nil, common.InternalError("run history is not configured")
	}
	var partner constants.Partner
	if strings.TrimSpace(req.Partner) != "" {
		p, ok := constants.ParsePartner(req.Partner)
		if !ok {
			return nil, common.ToStatus(&common.UnsupportedPartnerError{Partner: req.Partner})
		}
		partner = p
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	runs, err := s.runs.ListRuns(ctx, partner, limit)
	if err != nil {
		s.logger.Error("server.list_runs.failed", "partner", string(partner), "error", err)
		return nil, common.ToStatus(err)
	}
	resp := &ListRunsResponse{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, RunSummary{
			ID:                 r.ID,
			Partner:            string(r.Partner),
			InvoiceNumber:      r.InvoiceNumber,
			State:              string(r.State),
			DeltaSum:           r.DeltaSum.StringFixed(2),
			NumRows:            r.NumRows,
			ParsedOK:           r.ParsedOK,
			ComparisonPossible: r.ComparisonPossible,
			WithinThreshold:    r.WithinThreshold,
			Message:            r.Message,
			CreatedAt:          r.CreatedAt,
		})
	}
	return resp, nil
}

func toResponse(out reconcile.Outcome) *EvaluateResponse {
	resp := &EvaluateResponse{
		RunID:              out.RunID,
		Partner:            string(out.Partner),
		State:              string(out.State),
		WithinThreshold:    out.WithinThreshold,
		ParsedOK:           out.ParsedOK,
		ComparisonPossible: out.ComparisonPossible(),
		DeltaSum:           decimal.Zero.StringFixed(2),
		Threshold:          out.Threshold.String(),
		Message:            out.Message(),
		Reaction:           out.Reaction(),
	}
	if r := out.Result; r != nil {
		resp.InvoiceNumber = r.Meta.Number
		resp.DeltaSum = r.DeltaSum.StringFixed(2)
		resp.Rows = r.Rows
		resp.Diagnostics = r.Diagnostics
	}
	return resp
}
