package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

// "W/20250114/3": wooden prefix, shipment date, sequence
var magicRefRe = regexp.MustCompile(`([A-Za-z/]+)(\d{8})/(\d+)`)

// Magic Movers sheet layout, zero-based rows.
const (
	magicMetaRow     = 0
	magicHeaderRow   = 1
	magicSummaryRows = 2
	magicTotalCol    = 2
)

type magicMovers struct {
	logger *slog.Logger
}

// NewMagicMovers reads Magic Movers xlsx invoices ("Arkusz1").
func NewMagicMovers(logger *slog.Logger) Normalizer {
	return &magicMovers{logger: orDefault(logger)}
}

func (n *magicMovers) Normalize(_ context.Context, doc Document) (*entity.Invoice, error) {
	rows, err := sheetRows(constants.MagicMovers, doc.Primary, "Arkusz1")
	if err != nil {
		return nil, err
	}
	if len(rows) <= magicHeaderRow+magicSummaryRows {
		return nil, emptyDocument(constants.MagicMovers, "sheet has no data rows")
	}

	inv := &entity.Invoice{Partner: constants.MagicMovers}
	if d := cell(rows, magicMetaRow, 0); d != "" {
		inv.Meta.Date, _ = sheetDate(d)
	}
	inv.Meta.Number = cell(rows, magicMetaRow, 1)
	if total := cell(rows, len(rows)-1, magicTotalCol); total != "" {
		if d, err := utils.ParseAmount(total); err == nil {
			inv.Meta.DeclaredTotal = declared(d)
		}
	}

	h := header(rows[magicHeaderRow])
	refCol, ok := column(h, "Reference", "Order ID MAGIC MOVERS")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", constants.MagicMovers, "Reference")
	}
	priceCol, ok := column(h, "Price")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", constants.MagicMovers, "Price")
	}
	orderCol, ok := column(h, "Order ID")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", constants.MagicMovers, "Order ID")
	}

	for r := magicHeaderRow + 1; r < len(rows)-magicSummaryRows; r++ {
		ref := cell(rows, r, refCol)
		id := cell(rows, r, orderCol)
		amount := cell(rows, r, priceCol)
		if ref == "" && id == "" && amount == "" {
			continue
		}
		if id == "" {
			dropped(inv, ref, "no order id")
			continue
		}
		price, err := utils.ParseAmount(amount)
		if err != nil {
			dropped(inv, id, "unreadable price %q", amount)
			continue
		}
		l := entity.ShipmentLine{
			Key:       strings.ToLower(id),
			OrderID:   strings.ToLower(id),
			Reference: ref,
			Charged:   price,
			Quantity:  1,
		}
		if m := magicRefRe.FindStringSubmatch(ref); m != nil {
			l.Wooden = strings.EqualFold(m[1], "W/")
			l.ShipmentDate, _ = utils.ParseDate(m[2], "20060102")
		}
		inv.Lines = append(inv.Lines, l)
	}

	return finish(inv, inv.ChargedSum(), n.logger)
}
