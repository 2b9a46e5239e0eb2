package rates

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// PostalRange is a closed range of numeric postal codes.
type PostalRange struct {
	From int
	To   int
}

func (r PostalRange) Contains(code int) bool {
	return code >= r.From && code <= r.To
}

// FallbackZones describes the geographic fallback of a partner.
type FallbackZones struct {
	Country       string
	Metro         []string // country code + first two postal digits, e.g. "DE40"
	Extended      []PostalRange
	Exceptions    []string
	ExtendedPrice decimal.Decimal
	ZoneColumn    string // column of the fallback table holding the metro price
}

// GermanyZones is the Rhine-Ruhr/Randstad metro set and the Berlin extended zone.
func GermanyZones() FallbackZones {
	metro := []string{"DE40", "DE41", "DE42", "DE44", "DE45", "DE46", "DE47", "DE50"}
	for i := 10; i <= 19; i++ {
		metro = append(metro, "NL"+strconv.Itoa(i))
	}
	return FallbackZones{
		Country:       "DE",
		Metro:         metro,
		Extended:      []PostalRange{{From: 10000, To: 12699}},
		Exceptions:    []string{"10999"},
		ExtendedPrice: decimal.NewFromInt(190),
		ZoneColumn:    "DE",
	}
}

// GeoFallback prices shipments the main table cannot, based on postal codes.
type GeoFallback struct {
	country       string
	metro         map[string]struct{}
	extended      []PostalRange
	exceptions    map[string]struct{}
	extendedPrice decimal.Decimal
	zonePrices    map[string]decimal.Decimal
}

// NewGeoFallback builds a fallback from zones and the per-category metro prices.
func NewGeoFallback(z FallbackZones, zonePrices map[string]decimal.Decimal) *GeoFallback {
	g := &GeoFallback{
		country:       strings.ToUpper(z.Country),
		metro:         make(map[string]struct{}, len(z.Metro)),
		extended:      append([]PostalRange(nil), z.Extended...),
		exceptions:    make(map[string]struct{}, len(z.Exceptions)),
		extendedPrice: z.ExtendedPrice,
		zonePrices:    make(map[string]decimal.Decimal, len(zonePrices)),
	}
	for _, m := range z.Metro {
		g.metro[strings.ToUpper(m)] = struct{}{}
	}
	for _, e := range z.Exceptions {
		g.exceptions[e] = struct{}{}
	}
	for k, v := range zonePrices {
		g.zonePrices[k] = v
	}
	return g
}

// ZonePricesFromTable reads the metro price per category from column, first row wins.
func ZonePricesFromTable(t *Table, column string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, r := range t.Rows() {
		if _, seen := out[r.Category]; seen {
			continue
		}
		if p, ok := r.Price(column); ok {
			out[r.Category] = p
		}
	}
	return out
}

// Touches reports whether either side of the shipment is in the fallback country.
func (g *GeoFallback) Touches(buyerCountry, sellerCountry string) bool {
	return strings.EqualFold(buyerCountry, g.country) || strings.EqualFold(sellerCountry, g.country)
}

// Resolve prices a shipment from its postal codes.
func (g *GeoFallback) Resolve(category, buyerPostal, sellerPostal, buyerCountry, sellerCountry string) Resolution {
	buyerPostal = compactPostal(buyerPostal)
	sellerPostal = compactPostal(sellerPostal)

	if g.inMetro(buyerCountry, buyerPostal) && g.inMetro(sellerCountry, sellerPostal) {
		p, ok := g.zonePrices[category]
		if !ok || p.IsZero() {
			return Unresolved("no metro zone price for category %q", category)
		}
		return Resolved(p)
	}
	if g.inExtended(buyerPostal) || g.inExtended(sellerPostal) {
		return Resolved(g.extendedPrice)
	}
	return Unresolved("postal codes %s/%s outside fallback zones", buyerPostal, sellerPostal)
}

func (g *GeoFallback) inMetro(country, postal string) bool {
	if len(postal) < 2 {
		return false
	}
	_, ok := g.metro[strings.ToUpper(country)+postal[:2]]
	return ok
}

func (g *GeoFallback) inExtended(postal string) bool {
	if _, ok := g.exceptions[postal]; ok {
		return true
	}
	code, err := strconv.Atoi(postal)
	if err != nil || len(postal) != 5 {
		return false
	}
	for _, r := range g.extended {
		if r.Contains(code) {
			return true
		}
	}
	return false
}

func compactPostal(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}
