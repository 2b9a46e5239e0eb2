// Package reconcile runs one partner invoice through normalization, pricing
// and delta computation.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/delta"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/normalize"
)

// DefaultThreshold is the largest delta sum still reported as within threshold.
var DefaultThreshold = decimal.NewFromInt(20)

// OrderLedger returns a read-only snapshot of the orders a partner may invoice.
type OrderLedger interface {
	GetOrders(ctx context.Context, partner constants.Partner) ([]entity.OrderRecord, error)
}

// EvaluateRequest is one invoice to reconcile. A zero Threshold uses the orchestrator default.
type EvaluateRequest struct {
	Partner   constants.Partner
	Primary   []byte
	Secondary []byte
	Threshold decimal.NullDecimal
}

// Orchestrator dispatches an invoice to its partner variant.
type Orchestrator struct {
	registry   *Registry
	ledger     OrderLedger
	threshold  decimal.Decimal
	runTimeout time.Duration
	logger     *slog.Logger
}

type Option func(*Orchestrator)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t decimal.Decimal) Option {
	return func(o *Orchestrator) { o.threshold = t }
}

// WithRunTimeout bounds a single Evaluate call. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.runTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func NewOrchestrator(registry *Registry, ledger OrderLedger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:  registry,
		ledger:    ledger,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Partners lists the partners Evaluate accepts.
func (o *Orchestrator) Partners() []constants.Partner {
	return o.registry.Partners()
}

// Evaluate reconciles one invoice. It never returns an error: failures,
// including panics inside a variant, become a failed Outcome.
func (o *Orchestrator) Evaluate(ctx context.Context, req EvaluateRequest) (out Outcome) {
	out = Outcome{
		RunID:     uuid.NewString(),
		Partner:   req.Partner,
		State:     constants.RunStateStart,
		Threshold: o.threshold,
	}
	if req.Threshold.Valid {
		out.Threshold = req.Threshold.Decimal
	}
	ctx = common.WithRunID(ctx, out.RunID)
	ctx = common.WithPartner(ctx, string(req.Partner))
	ctx, cancel := common.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	log := o.logger.With("run_id", out.RunID, "partner", string(req.Partner))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out = o.fail(log, out, fmt.Errorf("panic: %v", r))
		}
	}()

	variant, err := o.registry.Lookup(req.Partner)
	if err != nil {
		return o.fail(log, out, err)
	}

	out.State = constants.RunStateNormalize
	inv, err := variant.Normalizer.Normalize(ctx, normalize.Document{Primary: req.Primary, Secondary: req.Secondary})
	if err != nil {
		return o.fail(log, out, err)
	}

	out.State = constants.RunStateResolveAndJoin
	result, err := o.resolveAndJoin(ctx, variant, inv)
	if err != nil {
		return o.fail(log, out, err)
	}

	out.State = constants.RunStateSuccess
	out.Result = result
	out.ParsedOK = true
	out.WithinThreshold = result.DeltaSum.LessThanOrEqual(out.Threshold)

	log.Info("reconcile.evaluate.ok",
		"invoice_number", result.Meta.Number,
		"rows", len(result.Rows),
		"delta_sum", result.DeltaSum.StringFixed(2),
		"within_threshold", out.WithinThreshold,
		"comparison_possible", result.ComparisonPossible,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

func (o *Orchestrator) resolveAndJoin(ctx context.Context, v Variant, inv *entity.Invoice) (*entity.RunResult, error) {
	if o.ledger == nil {
		return nil, errors.New("no order ledger configured")
	}
	orders, err := o.ledger.GetOrders(ctx, v.Partner)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	pricer, diags, err := v.Pricer(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pricing: %w", err)
	}
	res, err := delta.NewCalculator(v.Partner, v.Join, pricer, o.logger).Compute(ctx, inv, orders)
	if err != nil {
		return nil, err
	}
	res.Diagnostics = append(res.Diagnostics, diags...)
	return res, nil
}

// fail moves out to the terminal state matching the step that failed.
func (o *Orchestrator) fail(log *slog.Logger, out Outcome, err error) Outcome {
	switch out.State {
	case constants.RunStateStart, constants.RunStateNormalize:
		out.State = constants.RunStateParseFailed
	default:
		out.State = constants.RunStateResolutionFailed
	}
	out.Err = err
	out.Result = nil
	out.ParsedOK = false
	out.WithinThreshold = false
	log.Error("reconcile.evaluate.failed", "state", string(out.State), "error", common.InnermostMessage(err))
	return out
}
