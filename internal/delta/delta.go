// Package delta joins normalized invoice lines to ledger orders and computes
// charged minus expected per line.
package delta

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

// Calculator computes the delta result of one invoice.
type Calculator struct {
	partner constants.Partner
	join    JoinSpec
	pricer  Pricer
	logger  *slog.Logger
}

func NewCalculator(partner constants.Partner, join JoinSpec, pricer Pricer, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{partner: partner, join: join, pricer: pricer, logger: logger}
}

// Compute inner-joins inv's lines to orders and prices every joined line.
// Lines without a join key or a matching order produce no row.
func (c *Calculator) Compute(ctx context.Context, inv *entity.Invoice, orders []entity.OrderRecord) (*entity.RunResult, error) {
	if inv == nil {
		return nil, fmt.Errorf("compute delta: nil invoice: %w", common.ErrInvalidInput)
	}
	idx := c.join.index(orders)

	res := &entity.RunResult{
		SchemaVersion: entity.DeltaRowSchemaVersion,
		Partner:       c.partner,
		Meta:          inv.Meta,
		DeltaSum:      decimal.Zero,
		ExpectedSum:   decimal.Zero,
		Diagnostics:   append([]entity.Diagnostic(nil), inv.Diagnostics...),
	}

	for i, line := range inv.Lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := c.join.lineKey(line)
		if key == "" {
			missing := &common.MissingJoinKeyError{Partner: string(c.partner), Field: c.join.Field.String(), Line: i + 1}
			res.Diagnostics = append(res.Diagnostics, entity.Warn(common.CodeMissingJoinKey, line.Reference, "%s", missing.Error()))
			continue
		}
		order, ok := idx[key]
		if !ok {
			res.Unmatched++
			continue
		}

		resolution := c.pricer.Price(ctx, line, order)
		expected := resolution.Expected()
		d := line.Charged.Sub(expected)

		if !resolution.IsResolved() {
			res.Diagnostics = append(res.Diagnostics, entity.Warn(common.CodeUnresolvedPrice, order.OrderID,
				"%s: %s", resolution.Status, resolution.Reason))
			c.logger.Warn("delta.price.unresolved",
				"partner", string(c.partner),
				"order_id", order.OrderID,
				"status", string(resolution.Status),
				"reason", resolution.Reason,
			)
		}

		weight := order.Weight
		if w, err := utils.NormalizeWeight(order.Weight); err == nil {
			weight = w
		}
		ref := line.Reference
		if ref == "" {
			ref = line.Key
		}
		res.Rows = append(res.Rows, entity.DeltaRow{
			OrderID:       order.OrderID,
			PartnerRef:    ref,
			OrderDate:     utils.DateOnly(order.CreatedAt),
			Weight:        weight,
			Route:         order.Route(),
			CategoryL1:    order.CategoryL1,
			CategoryL2:    order.CategoryL2,
			Expected:      expected,
			Charged:       line.Charged,
			Delta:         d,
			InvoiceNumber: inv.Meta.Number,
			InvoiceDate:   inv.Meta.Date,
			Partner:       c.partner,
			Resolution:    resolution.Status,
			Note:          resolution.Reason,
		})
		res.DeltaSum = res.DeltaSum.Add(d)
		res.ExpectedSum = res.ExpectedSum.Add(expected)
	}

	for i := range res.Rows {
		res.Rows[i].DeltaSum = res.DeltaSum
	}
	res.ComparisonPossible = !res.ExpectedSum.IsZero()

	if res.Unmatched > 0 {
		res.Diagnostics = append(res.Diagnostics, entity.Info(common.CodeUnmatchedLine, inv.Meta.Number,
			"%d of %d lines matched no ledger order", res.Unmatched, len(inv.Lines)))
	}
	c.logger.Info("delta.compute.ok",
		"partner", string(c.partner),
		"lines", len(inv.Lines),
		"rows", len(res.Rows),
		"unmatched", res.Unmatched,
		"delta_sum", res.DeltaSum.StringFixed(2),
		"comparison_possible", res.ComparisonPossible,
	)
	return res, nil
}
