package rates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

// DistanceProvider returns the driving distance between two postal codes in kilometres.
type DistanceProvider interface {
	DistanceKM(ctx context.Context, originPostal, originCountry, destPostal, destCountry string) (decimal.Decimal, error)
}

// TransportRule prices a (seller country, buyer country) lane by distance tier.
type TransportRule struct {
	Seller string
	Buyer  string
	Tiers  []Tier
}

// flat lanes have a single unlimited tier and need no distance lookup.
func (r TransportRule) flat() bool {
	return len(r.Tiers) == 1 && r.Tiers[0].UpTo == -1
}

// SurchargeFamily charges PerItem for every item above Allowance.
type SurchargeFamily struct {
	Name      string
	Match     []string // substrings of the level-2 category
	Allowance int
	PerItem   decimal.Decimal
}

// FormulaPricing is the rate card of a formula-priced partner.
type FormulaPricing struct {
	Transport        []TransportRule
	Families         []SurchargeFamily
	PackingThreshold decimal.Decimal
	PackingBase      decimal.Decimal
	WoodenPerItem    decimal.Decimal
}

func tiers(pairs ...int64) []Tier {
	out := make([]Tier, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Tier{UpTo: pairs[i], Price: decimal.NewFromInt(pairs[i+1])})
	}
	return out
}

// MagicMoversPricing is the magic_movers rate card.
func MagicMoversPricing() FormulaPricing {
	return FormulaPricing{
		Transport: []TransportRule{
			{Seller: "NL", Buyer: "NL", Tiers: tiers(-1, 70)},
			{Seller: "NL", Buyer: "BE", Tiers: tiers(-1, 100)},
			{Seller: "NL", Buyer: "DE", Tiers: tiers(300, 120, 500, 150, -1, 200)},
			{Seller: "NL", Buyer: "FR", Tiers: tiers(300, 120, 500, 150, 900, 180, -1, 240)},
		},
		Families: []SurchargeFamily{
			{Name: "dining-chairs", Match: []string{"dining-chairs"}, Allowance: 6, PerItem: decimal.NewFromInt(20)},
			{Name: "armchairs", Match: []string{"armchairs", "lounge-chairs"}, Allowance: 2, PerItem: decimal.NewFromInt(30)},
		},
		PackingThreshold: decimal.NewFromInt(750),
		PackingBase:      decimal.NewFromInt(50),
		WoodenPerItem:    decimal.NewFromInt(20),
	}
}

// Validate checks every lane's tiers.
func (p FormulaPricing) Validate() error {
	for _, r := range p.Transport {
		if err := validateTiers(r.Tiers); err != nil {
			return fmt.Errorf("lane %s-%s: %w", r.Seller, r.Buyer, err)
		}
	}
	return nil
}

// FormulaQuote is the itemised expected price of one shipment. NoTransport is
// set when the lane has no price or its distance could not be looked up.
type FormulaQuote struct {
	Transport   decimal.Decimal
	Surcharge   decimal.Decimal
	Packing     decimal.Decimal
	Total       decimal.Decimal
	DistanceKM  decimal.Decimal
	OnRequest   bool
	NoTransport bool
	Notes       []string
}

// Resolution turns the quote into a line resolution.
func (q FormulaQuote) Resolution() Resolution {
	if q.OnRequest {
		return OnRequest("%s", strings.Join(q.Notes, "; "))
	}
	if q.NoTransport || q.Total.IsZero() {
		return Unresolved("%s", strings.Join(q.Notes, "; "))
	}
	r := Resolved(q.Total)
	r.Reason = strings.Join(q.Notes, "; ")
	return r
}

var (
	sizeSmall = decimal.NewFromInt(200)
	sizeMid   = decimal.NewFromInt(240)
	sizeLarge = decimal.NewFromInt(300)
)

// FormulaResolver computes transport + surcharge + packing.
type FormulaResolver struct {
	pricing  FormulaPricing
	distance DistanceProvider
	logger   *slog.Logger
}

func NewFormulaResolver(pricing FormulaPricing, distance DistanceProvider, logger *slog.Logger) *FormulaResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormulaResolver{pricing: pricing, distance: distance, logger: logger}
}

// Quote prices one order. wooden marks wood-packed shipments.
func (r *FormulaResolver) Quote(ctx context.Context, o entity.OrderRecord, wooden bool) FormulaQuote {
	var q FormulaQuote
	q.Transport, q.DistanceKM = r.transport(ctx, o, &q)
	q.Surcharge = r.surcharge(o, &q)
	q.Packing = r.packing(o, wooden || o.Wooden)
	q.Total = q.Transport.Add(q.Surcharge).Add(q.Packing)
	return q
}

func (r *FormulaResolver) transport(ctx context.Context, o entity.OrderRecord, q *FormulaQuote) (decimal.Decimal, decimal.Decimal) {
	seller, buyer := strings.ToUpper(o.SellerCountry), strings.ToUpper(o.BuyerCountry)
	for _, rule := range r.pricing.Transport {
		if rule.Seller != seller || rule.Buyer != buyer {
			continue
		}
		if rule.flat() {
			return rule.Tiers[0].Price, decimal.Zero
		}
		if r.distance == nil {
			q.NoTransport = true
			q.Notes = append(q.Notes, "no distance provider")
			return decimal.Zero, decimal.Zero
		}
		km, err := r.distance.DistanceKM(ctx, o.SellerPostal, seller, o.BuyerPostal, buyer)
		if err != nil {
			r.logger.Warn("rates.formula.distance_failed", "order_id", o.OrderID, "error", err)
			q.NoTransport = true
			q.Notes = append(q.Notes, "distance unavailable")
			return decimal.Zero, decimal.Zero
		}
		price, _ := priceFor(rule.Tiers, km)
		return price, km
	}
	q.NoTransport = true
	q.Notes = append(q.Notes, fmt.Sprintf("no transport lane %s-%s", seller, buyer))
	return decimal.Zero, decimal.Zero
}

func (r *FormulaResolver) surcharge(o entity.OrderRecord, q *FormulaQuote) decimal.Decimal {
	total := decimal.Zero
	category := strings.ToLower(o.CategoryL2)
	items := o.Items()
	for _, f := range r.pricing.Families {
		if !matchesAny(category, f.Match) {
			continue
		}
		if extra := items - f.Allowance; extra > 0 {
			total = total.Add(f.PerItem.Mul(decimal.NewFromInt(int64(extra))))
		}
		break
	}

	dim := o.MaxDimension()
	switch {
	case dim.GreaterThan(sizeLarge):
		q.OnRequest = true
		q.Notes = append(q.Notes, fmt.Sprintf("largest dimension %s cm above %s cm, surcharge on request", dim.String(), sizeLarge.String()))
	case dim.GreaterThan(sizeMid):
		total = total.Add(decimal.NewFromInt(150))
	case dim.GreaterThan(sizeSmall):
		total = total.Add(decimal.NewFromInt(70))
	}
	return total
}

func (r *FormulaResolver) packing(o entity.OrderRecord, wooden bool) decimal.Decimal {
	if o.Subtotal.LessThanOrEqual(r.pricing.PackingThreshold) {
		return decimal.Zero
	}
	cost := r.pricing.PackingBase
	dim := o.MaxDimension()
	switch {
	case dim.LessThan(decimal.NewFromInt(100)):
		cost = cost.Add(decimal.NewFromInt(170))
	case dim.LessThanOrEqual(decimal.NewFromInt(130)):
		cost = cost.Add(decimal.NewFromInt(190))
	case dim.LessThanOrEqual(decimal.NewFromInt(160)):
		cost = cost.Add(decimal.NewFromInt(220))
	case dim.LessThanOrEqual(decimal.NewFromInt(200)):
		cost = cost.Add(decimal.NewFromInt(240))
	case dim.LessThanOrEqual(decimal.NewFromInt(220)):
		cost = cost.Add(decimal.NewFromInt(280))
	}
	if wooden {
		cost = cost.Add(r.pricing.WoodenPerItem.Mul(decimal.NewFromInt(int64(o.Items()))))
	}
	return cost
}

func matchesAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
