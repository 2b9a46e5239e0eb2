package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

// SW de Vries sheet layout, zero-based rows.
const (
	swdvMetaRow   = 1
	swdvHeaderRow = 2
	swdvFirstRow  = 3
	swdvTotalCol  = 3
)

type swdevries struct {
	logger *slog.Logger
}

// NewSWDeVries reads SW de Vries xlsx invoices ("Blad1"): invoice date and
// number on the second row, the header on the third, a total row at the end.
func NewSWDeVries(logger *slog.Logger) Normalizer {
	return &swdevries{logger: orDefault(logger)}
}

func (n *swdevries) Normalize(_ context.Context, doc Document) (*entity.Invoice, error) {
	rows, err := sheetRows(constants.SWDeVries, doc.Primary, "Blad1")
	if err != nil {
		return nil, err
	}
	if len(rows) <= swdvFirstRow {
		return nil, emptyDocument(constants.SWDeVries, "sheet has no data rows")
	}

	inv := &entity.Invoice{Partner: constants.SWDeVries}
	inv.Meta.Number = cell(rows, swdvMetaRow, 1)
	if d := cell(rows, swdvMetaRow, 0); d != "" {
		inv.Meta.Date, _ = sheetDate(d)
	}
	last := len(rows) - 1
	if total := cell(rows, last, swdvTotalCol); total != "" {
		if d, err := utils.ParseAmount(total); err == nil {
			inv.Meta.DeclaredTotal = declared(d)
		}
	}

	h := header(rows[swdvHeaderRow])
	orderCol, ok := column(h, "Order ID")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", constants.SWDeVries, "Order ID")
	}
	priceCol, ok := column(h, "Price")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", constants.SWDeVries, "Price")
	}
	pickupCol, _ := column(h, "Pick-up date")
	pickupCityCol, _ := column(h, "Pick-up", "Pick-up city")
	dropoffCityCol, _ := column(h, "Drop-off", "Drop-off city")

	// the last row is the invoice total
	for r := swdvFirstRow; r < last; r++ {
		id := cell(rows, r, orderCol)
		amount := cell(rows, r, priceCol)
		if id == "" && amount == "" {
			continue
		}
		if id == "" {
			dropped(inv, fmt.Sprintf("row %d", r+1), "no order id")
			continue
		}
		price, err := utils.ParseAmount(amount)
		if err != nil {
			dropped(inv, id, "unreadable price %q", amount)
			continue
		}
		l := entity.ShipmentLine{
			Key:       strings.ToLower(id),
			Reference: id,
			Charged:   price,
			Quantity:  1,
			Pickup:    cell(rows, r, pickupCityCol),
			Dropoff:   cell(rows, r, dropoffCityCol),
		}
		if d := cell(rows, r, pickupCol); d != "" {
			l.ShipmentDate, _ = sheetDate(d)
		}
		inv.Lines = append(inv.Lines, l)
	}

	return finish(inv, inv.ChargedSum(), n.logger)
}
