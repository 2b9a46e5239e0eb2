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
	wuunderRowRe      = regexp.MustCompile(`^(\d{2}-\d{2}-\d{4})\s+(\S+)\s+(.*?)\s+package\s+(.*?)\s+([\d,]+)$`)
	wuunderNumberRe   = regexp.MustCompile(`Factuurnummer[:\s]+(\d+)`)
	wuunderDateRe     = regexp.MustCompile(`(?i)Factuurdatum[:\s]*(\d{1,2}\s+\w+\s+\d{4})`)
	wuunderFuelNumRe  = regexp.MustCompile(`\d+(?:[,.]\d+)?`)
	wuunderDeliveryRe = regexp.MustCompile(`(Retour.*|Pakket op pallet|Drop At Parcelshop|ShopReturn|Standard.*)`)
)

const (
	wuunderUUIDWindow     = 4
	wuunderFuelWindow     = 3
	wuunderDeliveryWindow = 3
)

var wuunderTags = []struct {
	needles []string
	tag     string
}{
	{[]string{"additional"}, "Additional"},
	{[]string{"retour", "return shipment"}, "Return shipment"},
	{[]string{"claimprocess started"}, "Claim started"},
	{[]string{"claim paid"}, "Claim paid"},
	{[]string{"claim refused"}, "Claim refused"},
}

type wuunder struct {
	text   TextExtractor
	logger *slog.Logger
}

// NewWuunder reads Wuunder PDF invoices: one dated row per parcel, followed by
// the order UUID and an optional fuel surcharge line.
func NewWuunder(text TextExtractor, logger *slog.Logger) Normalizer {
	return &wuunder{text: text, logger: orDefault(logger)}
}

func (w *wuunder) Normalize(ctx context.Context, doc Document) (*entity.Invoice, error) {
	ls, err := pdfLines(ctx, w.text, constants.Wuunder, doc.Primary)
	if err != nil {
		return nil, err
	}

	inv := &entity.Invoice{Partner: constants.Wuunder}
	w.metadata(ls, inv)

	for i, line := range ls {
		m := wuunderRowRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		price, err := utils.ParseAmount(m[5])
		if err != nil {
			dropped(inv, m[2], "unreadable price %q", m[5])
			continue
		}
		l := entity.ShipmentLine{
			Key:       strings.ToLower(m[2]),
			Reference: m[2],
			Carrier:   strings.TrimSpace(m[4]),
			Quantity:  1,
		}
		l.ShipmentDate, _ = utils.ParseDate(m[1], "02-01-2006")

		for j := 1; j <= wuunderUUIDWindow && i+j < len(ls); j++ {
			if u := uuidRe.FindString(ls[i+j]); u != "" {
				l.OrderID = strings.ToLower(u)
				break
			}
		}

		fuel := decimal.Zero
		for j := 1; j <= wuunderFuelWindow && i+j < len(ls); j++ {
			if !strings.Contains(ls[i+j], "Fuel") {
				continue
			}
			// "inclusief" carries no amount and counts as zero
			if nums := wuunderFuelNumRe.FindAllString(ls[i+j], -1); len(nums) > 0 {
				if f, err := utils.ParseAmount(nums[len(nums)-1]); err == nil {
					fuel = f
				}
			}
			l.Fuel = declared(fuel)
			break
		}

		for j := 1; j <= wuunderDeliveryWindow && i+j < len(ls); j++ {
			if dm := wuunderDeliveryRe.FindStringSubmatch(ls[i+j]); dm != nil {
				l.DeliveryMethod = dm[1]
				break
			}
		}

		lo, hi := max(0, i-2), min(len(ls), i+5)
		l.Tags = wuunderContextTags(strings.ToLower(strings.Join(ls[lo:hi], " ")))

		l.Charged = price.Add(fuel)
		inv.Lines = append(inv.Lines, l)
	}

	return finish(inv, inv.ChargedSum(), w.logger)
}

func (w *wuunder) metadata(ls []string, inv *entity.Invoice) {
	for _, line := range ls {
		if strings.Contains(line, "Totaal") && strings.Contains(line, "BTW") && strings.Contains(line, "+") {
			if m := euroRe.FindStringSubmatch(line); m != nil {
				if total, err := utils.ParseAmount(m[1]); err == nil {
					inv.Meta.DeclaredTotal = declared(total)
				}
			}
			return
		}
		if inv.Meta.Number == "" {
			if m := wuunderNumberRe.FindStringSubmatch(line); m != nil {
				inv.Meta.Number = m[1]
			}
		}
		if inv.Meta.Date.IsZero() {
			if m := wuunderDateRe.FindStringSubmatch(line); m != nil {
				if d, err := utils.ParseDutchDate(m[1]); err == nil {
					inv.Meta.Date = d
				} else {
					w.logger.Debug("normalize.wuunder.date_unparsed", "value", m[1])
				}
			}
		}
	}
}

func wuunderContextTags(window string) []string {
	var tags []string
	for _, t := range wuunderTags {
		for _, n := range t.needles {
			if strings.Contains(window, n) {
				tags = append(tags, t.tag)
				break
			}
		}
	}
	return tags
}
