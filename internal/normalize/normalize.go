// Package normalize turns partner invoice documents into normalized shipment lines.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

// Document is the raw payload of one invoice. Secondary carries a companion
// file for partners that split lines and metadata over two documents.
type Document struct {
	Primary   []byte
	Secondary []byte
}

// Normalizer converts a partner document into an Invoice.
type Normalizer interface {
	Normalize(ctx context.Context, doc Document) (*entity.Invoice, error)
}

// TextExtractor returns the text of each page of a PDF.
type TextExtractor interface {
	Pages(ctx context.Context, pdf []byte) ([]string, error)
}

// totalTolerance is the largest accepted gap between declared and parsed totals.
var totalTolerance = decimal.RequireFromString("0.01")

var (
	uuidRe = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	dashRe = regexp.MustCompile("[–—−]")
	euroRe = regexp.MustCompile(`€\s*(-?[\d.,]+)`)
)

// lines flattens pages into trimmed lines with typographic dashes replaced.
// Empty lines are dropped when skipEmpty is set.
func lines(pages []string, skipEmpty bool) []string {
	var out []string
	for _, p := range pages {
		for _, ln := range strings.Split(p, "\n") {
			ln = strings.TrimSpace(dashRe.ReplaceAllString(ln, "-"))
			if skipEmpty && ln == "" {
				continue
			}
			out = append(out, ln)
		}
	}
	return out
}

func pdfLines(ctx context.Context, x TextExtractor, partner constants.Partner, pdf []byte) ([]string, error) {
	if len(pdf) == 0 {
		return nil, emptyPayload(partner)
	}
	if x == nil {
		return nil, fmt.Errorf("%s: no text extractor configured", partner)
	}
	pages, err := x.Pages(ctx, pdf)
	if err != nil {
		return nil, extractFailed(partner, err)
	}
	return lines(pages, true), nil
}

func emptyPayload(partner constants.Partner) error {
	return &common.EmptyDocumentError{Partner: string(partner), Reason: "empty payload"}
}

func emptyDocument(partner constants.Partner, format string, args ...any) error {
	return &common.EmptyDocumentError{Partner: string(partner), Reason: fmt.Sprintf(format, args...)}
}

func extractFailed(partner constants.Partner, err error) error {
	return fmt.Errorf("%s: extract text: %w", partner, err)
}

// finish enforces the normalizer post-condition and runs the total check
// against parsed. It never fails on a total mismatch.
func finish(inv *entity.Invoice, parsed decimal.Decimal, logger *slog.Logger) (*entity.Invoice, error) {
	partner := string(inv.Partner)
	if len(inv.Lines) == 0 {
		return nil, &common.EmptyDocumentError{Partner: partner}
	}
	for i, l := range inv.Lines {
		if l.Key == "" {
			return nil, &common.EmptyDocumentError{Partner: partner, Reason: fmt.Sprintf("line %d has no identifier", i+1)}
		}
	}

	if inv.Meta.DeclaredTotal.Valid {
		declared := inv.Meta.DeclaredTotal.Decimal
		parsed = parsed.Round(2)
		if declared.Sub(parsed).Abs().GreaterThan(totalTolerance) {
			inv.Diagnostics = append(inv.Diagnostics, entity.Warn(common.CodeTotalMismatch, inv.Meta.Number,
				"declared total %s, parsed sum %s", declared.StringFixed(2), parsed.StringFixed(2)))
			logger.Warn("normalize.total.mismatch",
				"partner", partner,
				"invoice_number", inv.Meta.Number,
				"declared", declared.StringFixed(2),
				"parsed", parsed.StringFixed(2),
			)
		} else {
			logger.Debug("normalize.total.ok", "partner", partner, "total", parsed.StringFixed(2))
		}
	}

	logger.Info("normalize.ok",
		"partner", partner,
		"invoice_number", inv.Meta.Number,
		"lines", len(inv.Lines),
		"diagnostics", len(inv.Diagnostics),
	)
	return inv, nil
}

func dropped(inv *entity.Invoice, ref, format string, args ...any) {
	inv.Diagnostics = append(inv.Diagnostics, entity.Warn(common.CodeDroppedRecord, ref, format, args...))
}

func declared(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
