package normalize

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

var (
	brengerDateRe   = regexp.MustCompile(`Factuurdatum:\s*(\d{4}-\d{2}-\d{2})`)
	brengerNumberRe = regexp.MustCompile(`Factuurnummer:\s*(\w+)`)
	brengerIDRe     = regexp.MustCompile(`^(\w{6})\s(\d{4}-\d{2}-\d{2}: .*)`)
	brengerPriceRe  = regexp.MustCompile(`€\s*([\d,.]+)\s*€\s*([\d,.]+)`)
	brengerOrderRe  = regexp.MustCompile(`^Ordernummer:\s*(\w+)`)

	// "2025-01-12: Amsterdam (Jan) - Utrecht (Piet)" or "2025-01-12: Amsterdam - Utrecht (Jan)"
	brengerTripNamedRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}):\s*([\w\s\-'/.]+?)\s*\((.*?)\)\s*-\s*([\w\s\-'/.]+?)\s*\((.*?)\)`)
	brengerTripRe      = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}):\s*([\w\s\-'/.]+?)\s*-\s*([\w\s\-'/.]+?)\s*\((.*?)\)`)
)

// brengerLookahead is how many lines after the booking line may hold its prices.
const brengerLookahead = 2

type brenger struct {
	text   TextExtractor
	logger *slog.Logger
}

// NewBrenger reads Brenger PDF invoices: a six-character booking code opens a
// line, followed by the trip and "€ incl € excl" prices.
func NewBrenger(text TextExtractor, logger *slog.Logger) Normalizer {
	return &brenger{text: text, logger: orDefault(logger)}
}

type brengerRecord struct {
	line  entity.ShipmentLine
	found bool
}

func (b *brenger) Normalize(ctx context.Context, doc Document) (*entity.Invoice, error) {
	ls, err := pdfLines(ctx, b.text, constants.Brenger, doc.Primary)
	if err != nil {
		return nil, err
	}

	inv := &entity.Invoice{Partner: constants.Brenger}
	var records []*brengerRecord
	var current *brengerRecord
	window := 0

	for i := 0; i < len(ls); i++ {
		line := ls[i]

		if m := brengerDateRe.FindStringSubmatch(line); m != nil && inv.Meta.Date.IsZero() {
			inv.Meta.Date, _ = utils.ParseYMD(m[1])
		}
		if m := brengerNumberRe.FindStringSubmatch(line); m != nil && inv.Meta.Number == "" {
			inv.Meta.Number = m[1]
		}
		if strings.Contains(line, "BTW (21%):") {
			current = nil
			continue
		}
		if strings.Contains(line, "TOTAAL:") {
			if m := euroRe.FindStringSubmatch(line); m != nil {
				if total, err := utils.ParseAmount(m[1]); err == nil {
					inv.Meta.DeclaredTotal = declared(total)
				}
			}
			break
		}

		cancelled := strings.Contains(line, ". Cancelled.")
		line = strings.TrimSpace(strings.ReplaceAll(line, ". Cancelled.", ""))

		if m := brengerIDRe.FindStringSubmatch(line); m != nil {
			current = &brengerRecord{line: entity.ShipmentLine{
				Key:       strings.ToLower(m[1]),
				Reference: m[1],
				Status:    "Active",
				Quantity:  1,
			}}
			if cancelled {
				current.line.Status = "Cancelled"
			}
			records = append(records, current)
			window = brengerLookahead

			trip := m[2]
			if strings.Contains(trip, "(") && !strings.Contains(trip, ")") && i+1 < len(ls) {
				trip += " " + ls[i+1]
			}
			parseBrengerTrip(trip, &current.line)
			line = strings.TrimSpace(strings.TrimPrefix(line, m[1]))
		} else if current != nil {
			if m := brengerOrderRe.FindStringSubmatch(line); m != nil {
				current.line.OrderNumber = m[1]
			}
			if window == 0 {
				continue
			}
			window--
		}

		if current == nil || current.found {
			continue
		}
		if m := brengerPriceRe.FindStringSubmatch(line); m != nil {
			gross, errGross := utils.ParseAmount(m[1])
			net, errNet := utils.ParseAmount(m[2])
			if errGross != nil || errNet != nil {
				continue
			}
			current.line.ChargedGross = declared(gross)
			current.line.Charged = net
			current.found = true
		}
	}

	gross := decimal.Zero
	for _, r := range records {
		if !r.found {
			dropped(inv, r.line.Reference, "no price within %d lines of booking %s", brengerLookahead, r.line.Reference)
			continue
		}
		inv.Lines = append(inv.Lines, r.line)
		gross = gross.Add(r.line.ChargedGross.Decimal)
	}
	// the declared TOTAAL includes VAT
	return finish(inv, gross, b.logger)
}

func parseBrengerTrip(trip string, l *entity.ShipmentLine) {
	trip = brengerPriceRe.ReplaceAllString(trip, "")
	if m := brengerTripNamedRe.FindStringSubmatch(trip); m != nil {
		l.ShipmentDate, _ = utils.ParseYMD(m[1])
		l.Pickup = strings.TrimSpace(m[2])
		l.Dropoff = strings.TrimSpace(m[4])
		return
	}
	if m := brengerTripRe.FindStringSubmatch(trip); m != nil {
		l.ShipmentDate, _ = utils.ParseYMD(m[1])
		l.Pickup = strings.TrimSpace(m[2])
		l.Dropoff = strings.TrimSpace(m[3])
	}
}
