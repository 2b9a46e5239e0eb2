package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

var (
	taddeNumberRe = regexp.MustCompile(`Invoice number\s*(F-\d{4}-\d{3})`)
	taddeDateRe   = regexp.MustCompile(`Issue date\s*(\d{2}-\d{2}-\d{4})`)
	taddeOpenRe   = regexp.MustCompile(`(?i)^(whoppah\d{3,})$`)
	taddePriceRe  = regexp.MustCompile(`^(\d+)\s+unit\s+€\s*([\d.,]+)\s+(\d+)\s+%\s+€\s*([\d.,]+)`)
)

const taddeLookahead = 5

type tadde struct {
	text   TextExtractor
	logger *slog.Logger
}

// NewTadde reads Tadde PDF invoices: a "whoppahNNN" line opens a block whose
// next lines hold the order UUID and a "qty unit € price vat % € total" line.
func NewTadde(text TextExtractor, logger *slog.Logger) Normalizer {
	return &tadde{text: text, logger: orDefault(logger)}
}

func (t *tadde) Normalize(ctx context.Context, doc Document) (*entity.Invoice, error) {
	if len(doc.Primary) == 0 {
		return nil, emptyPayload(constants.Tadde)
	}
	if t.text == nil {
		return nil, fmt.Errorf("%s: no text extractor configured", constants.Tadde)
	}
	pages, err := t.text.Pages(ctx, doc.Primary)
	if err != nil {
		return nil, extractFailed(constants.Tadde, err)
	}

	inv := &entity.Invoice{Partner: constants.Tadde}
	t.metadata(lines(pages, true), inv)

	// blocks never span pages
	for _, page := range pages {
		ls := lines([]string{page}, true)
		for i := 0; i < len(ls); {
			open := taddeOpenRe.FindStringSubmatch(ls[i])
			if open == nil {
				i++
				continue
			}
			ref := open[1]
			l := entity.ShipmentLine{Reference: ref, OrderNumber: strings.ToLower(ref)}
			priceAt, uuidAt := 0, 0
			hasPrice := false

			for off := 1; off <= taddeLookahead && i+off < len(ls); off++ {
				line := ls[i+off]
				if l.Key == "" {
					if u := uuidRe.FindString(line); u != "" {
						l.Key = strings.ToLower(u)
						l.OrderID = l.Key
						uuidAt = off
					}
				}
				if !hasPrice {
					if m := taddePriceRe.FindStringSubmatch(line); m != nil {
						qty, errQty := strconv.Atoi(m[1])
						total, errTotal := utils.ParseAmount(m[4])
						if errQty == nil && errTotal == nil {
							l.Quantity = qty
							l.Charged = total
							hasPrice = true
							priceAt = off
						}
					}
				}
				if l.Key != "" && hasPrice {
					break
				}
			}

			if l.Key == "" || !hasPrice {
				dropped(inv, ref, "block %s incomplete within %d lines (uuid=%t, price=%t)", ref, taddeLookahead, l.Key != "", hasPrice)
				i++
				continue
			}
			inv.Lines = append(inv.Lines, l)
			i += max(priceAt, uuidAt) + 1
		}
	}

	return finish(inv, inv.ChargedSum(), t.logger)
}

func (t *tadde) metadata(ls []string, inv *entity.Invoice) {
	for _, line := range ls {
		if inv.Meta.Number == "" {
			if m := taddeNumberRe.FindStringSubmatch(line); m != nil {
				inv.Meta.Number = m[1]
			}
		}
		if inv.Meta.Date.IsZero() {
			if m := taddeDateRe.FindStringSubmatch(line); m != nil {
				inv.Meta.Date, _ = utils.ParseDate(m[1], "02-01-2006")
			}
		}
		if !inv.Meta.DeclaredTotal.Valid && strings.Contains(line, "Total excl. VAT") {
			if m := euroRe.FindStringSubmatch(line); m != nil {
				if total, err := utils.ParseAmount(m[1]); err == nil {
					inv.Meta.DeclaredTotal = declared(total)
				}
			}
		}
	}
}
