package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
)

// InvoiceMeta is the document-level data printed on an invoice.
type InvoiceMeta struct {
	Number        string
	Date          time.Time
	DeclaredTotal decimal.NullDecimal
}

// ShipmentLine is one normalized invoice line.
type ShipmentLine struct {
	// Key is the partner-scoped join identifier, lower-cased.
	Key string
	// Reference is the partner's own reference as printed on the document.
	Reference string
	Charged   decimal.Decimal
	// OrderID is the ledger order id when the document prints one next to Key.
	OrderID     string
	OrderNumber string

	ChargedGross   decimal.NullDecimal // incl. VAT, when the document prints it
	Fuel           decimal.NullDecimal
	Quantity       int
	ShipmentDate   time.Time
	Status         string
	Tags           []string
	DeliveryMethod string
	Carrier        string
	Pickup         string
	Dropoff        string
	Wooden         bool
}

// Invoice is the output of a document normalizer.
type Invoice struct {
	Partner     constants.Partner
	Meta        InvoiceMeta
	Lines       []ShipmentLine
	Diagnostics []Diagnostic
}

// ChargedSum adds up the charged price of every line.
func (inv *Invoice) ChargedSum() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range inv.Lines {
		sum = sum.Add(l.Charged)
	}
	return sum
}
