package rates

import (
	"time"

	"github.com/joseph-ayodele/carrier-reconciler/internal/utils"
)

// Query is everything the table resolver needs to price one line.
type Query struct {
	Category      string
	Weight        string
	Route         string
	Date          time.Time
	BuyerPostal   string
	SellerPostal  string
	BuyerCountry  string
	SellerCountry string
}

// TableResolver prices lines from a partner rate table.
type TableResolver struct {
	pricing  TablePricing
	table    *Table
	fallback *GeoFallback
}

// NewTableResolver binds a table (and optional fallback) to the partner's pricing rules.
func NewTableResolver(pricing TablePricing, table *Table, fallback *GeoFallback) *TableResolver {
	if !pricing.Fallback {
		fallback = nil
	}
	return &TableResolver{pricing: pricing, table: table, fallback: fallback}
}

func (r *TableResolver) Pricing() TablePricing { return r.pricing }

// Resolve looks up the expected price of q. A zero or missing table price is
// handed to the geographic fallback when the shipment touches its country.
func (r *TableResolver) Resolve(q Query) Resolution {
	if q.Route == "" || q.Route == "-" {
		return Unresolved("missing route")
	}
	weight, err := utils.NormalizeWeight(q.Weight)
	if err != nil {
		return Unresolved("missing weight")
	}

	res := r.lookup(q.Category, weight, q.Route, q.Date)
	if res.IsResolved() {
		return res
	}
	if r.fallback != nil && r.fallback.Touches(q.BuyerCountry, q.SellerCountry) {
		fb := r.fallback.Resolve(q.Category, q.BuyerPostal, q.SellerPostal, q.BuyerCountry, q.SellerCountry)
		if !fb.IsResolved() {
			fb.Reason = res.Reason + "; fallback: " + fb.Reason
		}
		return fb
	}
	return res
}

func (r *TableResolver) lookup(category, weight, route string, date time.Time) Resolution {
	row, ok := r.table.Lookup(category, weight)
	if !ok {
		if !r.table.HasCategory(category) {
			return Unresolved("category %q not in %s", category, r.table.Name)
		}
		return Unresolved("no %s row for %q at weight %s", r.table.Name, category, weight)
	}
	columns := r.pricing.Columns(route, date)
	for _, col := range columns {
		p, present := row.Price(col)
		if !present {
			continue
		}
		if p.IsZero() {
			return Unresolved("zero price in column %s", col)
		}
		return Resolved(p)
	}
	return Unresolved("no column %s", columns[len(columns)-1])
}
