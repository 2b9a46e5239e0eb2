package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
)

// DeltaRowSchemaVersion is bumped whenever DeltaRow gains or loses a column.
const DeltaRowSchemaVersion = 1

// DeltaRow is one reconciled invoice line.
type DeltaRow struct {
	OrderID       string                     `json:"order_id"`
	PartnerRef    string                     `json:"partner_ref"`
	OrderDate     time.Time                  `json:"order_date"`
	Weight        string                     `json:"weight"`
	Route         string                     `json:"route"`
	CategoryL1    string                     `json:"category_l1"`
	CategoryL2    string                     `json:"category_l2"`
	Expected      decimal.Decimal            `json:"expected"`
	Charged       decimal.Decimal            `json:"charged"`
	Delta         decimal.Decimal            `json:"delta"`
	DeltaSum      decimal.Decimal            `json:"delta_sum"`
	InvoiceNumber string                     `json:"invoice_number"`
	InvoiceDate   time.Time                  `json:"invoice_date"`
	Partner       constants.Partner          `json:"partner"`
	Resolution    constants.ResolutionStatus `json:"resolution"`
	Note          string                     `json:"note,omitempty"`
}

// RunResult is the immutable outcome of delta computation for one invoice.
type RunResult struct {
	SchemaVersion      int               `json:"schema_version"`
	Partner            constants.Partner `json:"partner"`
	Meta               InvoiceMeta       `json:"-"`
	Rows               []DeltaRow        `json:"rows"`
	DeltaSum           decimal.Decimal   `json:"delta_sum"`
	ExpectedSum        decimal.Decimal   `json:"expected_sum"`
	ComparisonPossible bool              `json:"comparison_possible"`
	Unmatched          int               `json:"unmatched"`
	Diagnostics        []Diagnostic      `json:"diagnostics,omitempty"`
}

// PerfectMatch reports whether every matched row was priced and charged exactly as expected.
func (r *RunResult) PerfectMatch() bool {
	if len(r.Rows) == 0 || !r.ComparisonPossible {
		return false
	}
	for _, row := range r.Rows {
		if row.Resolution != constants.ResolutionResolved || !row.Delta.IsZero() {
			return false
		}
	}
	return true
}

// PositiveDeltas returns the rows where the partner charged more than expected.
func (r *RunResult) PositiveDeltas() []DeltaRow {
	var out []DeltaRow
	for _, row := range r.Rows {
		if row.Delta.IsPositive() {
			out = append(out, row)
		}
	}
	return out
}
