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

var liberoMetaRe = regexp.MustCompile(`Factuurnummer:\s*(\S+)\s+Factuurdatum:\s*(\d{2}-\d{2}-\d{4})`)

const (
	// summary rows at the bottom of the line sheet
	liberoSummaryRows = 5
	// the declared total sits on the third row from the bottom, column B
	liberoTotalOffset = 3
	liberoTotalCol    = 1
)

type libero struct {
	text   TextExtractor
	logger *slog.Logger
}

// NewLibero reads Libero Logistics invoices: shipment lines come from the xlsx
// "factuur" sheet, invoice number and date from the companion PDF.
func NewLibero(text TextExtractor, logger *slog.Logger) Normalizer {
	return &libero{text: text, logger: orDefault(logger)}
}

func (n *libero) Normalize(ctx context.Context, doc Document) (*entity.Invoice, error) {
	rows, err := sheetRows(constants.LiberoLogistics, doc.Primary, "factuur")
	if err != nil {
		return nil, err
	}
	inv := &entity.Invoice{Partner: constants.LiberoLogistics}

	if len(doc.Secondary) > 0 {
		if err := n.metadata(ctx, doc.Secondary, inv); err != nil {
			return nil, err
		}
	} else {
		n.logger.Warn("normalize.libero.no_metadata_pdf")
	}

	if len(rows) < 1+liberoSummaryRows {
		return nil, emptyDocument(constants.LiberoLogistics, "sheet shorter than its summary block")
	}

	if total := cell(rows, len(rows)-liberoTotalOffset, liberoTotalCol); total != "" {
		if d, err := utils.ParseAmount(total); err == nil {
			inv.Meta.DeclaredTotal = declared(d)
		}
	}

	h := header(rows[0])
	orderCol, ok := column(h, "Omschrijving")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", constants.LiberoLogistics, "Omschrijving")
	}
	priceCol, ok := column(h, "Bedrag")
	if !ok {
		return nil, fmt.Errorf("%s: missing column %q", constants.LiberoLogistics, "Bedrag")
	}
	refCol, _ := column(h, "LL Bumbal ref.", "LL Bumbal ref")
	dateCol, _ := column(h, "Leverdatum")

	for r := 1; r < len(rows)-liberoSummaryRows; r++ {
		orderID := cell(rows, r, orderCol)
		amount := cell(rows, r, priceCol)
		if orderID == "" && amount == "" {
			continue
		}
		if orderID == "" {
			dropped(inv, fmt.Sprintf("row %d", r+1), "no order id")
			continue
		}
		price, err := utils.ParseAmount(amount)
		if err != nil {
			dropped(inv, orderID, "unreadable amount %q", amount)
			continue
		}
		l := entity.ShipmentLine{
			Key:       strings.ToLower(orderID),
			OrderID:   strings.ToLower(orderID),
			Reference: cell(rows, r, refCol),
			Charged:   price,
			Quantity:  1,
		}
		if d := cell(rows, r, dateCol); d != "" {
			l.ShipmentDate, _ = sheetDate(d)
		}
		inv.Lines = append(inv.Lines, l)
	}

	return finish(inv, inv.ChargedSum(), n.logger)
}

func (n *libero) metadata(ctx context.Context, pdf []byte, inv *entity.Invoice) error {
	ls, err := pdfLines(ctx, n.text, constants.LiberoLogistics, pdf)
	if err != nil {
		return err
	}
	for _, line := range ls {
		if m := liberoMetaRe.FindStringSubmatch(line); m != nil {
			inv.Meta.Number = m[1]
			inv.Meta.Date, _ = utils.ParseDate(m[2], "02-01-2006")
			return nil
		}
	}
	n.logger.Warn("normalize.libero.metadata_missing")
	return nil
}
