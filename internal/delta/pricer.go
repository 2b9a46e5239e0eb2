package delta

import (
	"context"

	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/rates"
)

// Pricer returns the expected price of one joined line.
type Pricer interface {
	Price(ctx context.Context, line entity.ShipmentLine, order entity.OrderRecord) rates.Resolution
}

type tablePricer struct {
	r *rates.TableResolver
}

// TablePricer prices lines from a rate table using the order's category,
// weight, route and creation date.
func TablePricer(r *rates.TableResolver) Pricer {
	return tablePricer{r: r}
}

func (p tablePricer) Price(_ context.Context, _ entity.ShipmentLine, o entity.OrderRecord) rates.Resolution {
	return p.r.Resolve(QueryFor(o))
}

// QueryFor builds the table query for an order. The second category level
// is the rate table key; orders without one fall back to the first level.
func QueryFor(o entity.OrderRecord) rates.Query {
	category := o.CategoryL2
	if category == "" {
		category = o.CategoryL1
	}
	return rates.Query{
		Category:      category,
		Weight:        o.Weight,
		Route:         o.Route(),
		Date:          o.CreatedAt,
		BuyerPostal:   o.BuyerPostal,
		SellerPostal:  o.SellerPostal,
		BuyerCountry:  o.BuyerCountry,
		SellerCountry: o.SellerCountry,
	}
}

type formulaPricer struct {
	r *rates.FormulaResolver
}

// FormulaPricer prices lines with the distance/surcharge/packing formula.
// A line marked wooden on the invoice counts as wood-packed.
func FormulaPricer(r *rates.FormulaResolver) Pricer {
	return formulaPricer{r: r}
}

func (p formulaPricer) Price(ctx context.Context, l entity.ShipmentLine, o entity.OrderRecord) rates.Resolution {
	return p.r.Quote(ctx, o, l.Wooden).Resolution()
}
