package normalize

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

var (
	transpoksiNumberRe = regexp.MustCompile(`(?i)Invoice no\.?:?\s*([\w/-]+)`)
	transpoksiDateRe   = regexp.MustCompile(`(?i)Invoice date:?\s*(\d{2}\.\d{2}\.\d{4})`)
	transpoksiTotalRe  = regexp.MustCompile(`(?i)Total net:?\s*€\s*([\d.,]+)`)
	transpoksiOpenRe   = regexp.MustCompile(`^(TP\d{6})\b`)
)

const transpoksiLookahead = 7

type transpoksi struct {
	text   TextExtractor
	logger *slog.Logger
}

// NewTranspoksi reads Transpoksi PDF invoices: a "TPnnnnnn" vendor code opens a
// block; the order UUID and a € amount follow within a few lines.
func NewTranspoksi(text TextExtractor, logger *slog.Logger) Normalizer {
	return &transpoksi{text: text, logger: orDefault(logger)}
}

func (t *transpoksi) Normalize(ctx context.Context, doc Document) (*entity.Invoice, error) {
	ls, err := pdfLines(ctx, t.text, constants.Transpoksi, doc.Primary)
	if err != nil {
		return nil, err
	}

	inv := &entity.Invoice{Partner: constants.Transpoksi}
	for _, line := range ls {
		if m := transpoksiNumberRe.FindStringSubmatch(line); m != nil && inv.Meta.Number == "" {
			inv.Meta.Number = m[1]
		}
		if m := transpoksiDateRe.FindStringSubmatch(line); m != nil && inv.Meta.Date.IsZero() {
			inv.Meta.Date, _ = utils.ParseDate(m[1], "02.01.2006")
		}
		if m := transpoksiTotalRe.FindStringSubmatch(line); m != nil && !inv.Meta.DeclaredTotal.Valid {
			if total, err := utils.ParseAmount(m[1]); err == nil {
				inv.Meta.DeclaredTotal = declared(total)
			}
		}
	}

	for i := 0; i < len(ls); i++ {
		open := transpoksiOpenRe.FindStringSubmatch(ls[i])
		if open == nil {
			continue
		}
		ref := open[1]
		l := entity.ShipmentLine{Reference: ref, OrderNumber: strings.ToLower(ref), Quantity: 1}
		hasPrice := false

		// the opening line itself may carry the amount or the UUID
		for off := 0; off <= transpoksiLookahead && i+off < len(ls); off++ {
			line := ls[i+off]
			if off > 0 && transpoksiOpenRe.MatchString(line) {
				break
			}
			if l.Key == "" {
				if u := uuidRe.FindString(line); u != "" {
					l.Key = strings.ToLower(u)
					l.OrderID = l.Key
				}
			}
			if !hasPrice && !transpoksiTotalRe.MatchString(line) {
				if m := euroRe.FindStringSubmatch(line); m != nil {
					if p, err := utils.ParseAmount(m[1]); err == nil {
						l.Charged = p
						hasPrice = true
					}
				}
			}
			if l.Key != "" && hasPrice {
				break
			}
		}

		if l.Key == "" || !hasPrice {
			dropped(inv, ref, "block %s incomplete within %d lines (uuid=%t, price=%t)", ref, transpoksiLookahead, l.Key != "", hasPrice)
			continue
		}
		inv.Lines = append(inv.Lines, l)
	}

	return finish(inv, inv.ChargedSum(), t.logger)
}
