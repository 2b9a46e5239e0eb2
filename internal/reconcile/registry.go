package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/delta"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
	"github.com/joseph-ayodele/carrier-reconciler/internal/normalize"
	"github.com/joseph-ayodele/carrier-reconciler/internal/rates"
)

// PricerFactory builds a fresh pricer for one run. Diagnostics are attached to the run.
type PricerFactory func(ctx context.Context) (delta.Pricer, []entity.Diagnostic, error)

// Variant is the capability pair registered for one partner.
type Variant struct {
	Partner    constants.Partner
	Normalizer normalize.Normalizer
	Join       delta.JoinSpec
	Pricer     PricerFactory
}

// Registry maps partners to their variant.
type Registry struct {
	variants map[constants.Partner]Variant
}

func NewRegistry() *Registry {
	return &Registry{variants: make(map[constants.Partner]Variant)}
}

// Register adds or replaces the variant for v.Partner.
func (r *Registry) Register(v Variant) {
	r.variants[v.Partner] = v
}

// Lookup returns the variant for partner or an *common.UnsupportedPartnerError.
func (r *Registry) Lookup(partner constants.Partner) (Variant, error) {
	v, ok := r.variants[partner]
	if !ok {
		return Variant{}, &common.UnsupportedPartnerError{Partner: string(partner)}
	}
	return v, nil
}

// Partners lists the registered partners in canonical order.
func (r *Registry) Partners() []constants.Partner {
	var out []constants.Partner
	for _, p := range constants.Partners() {
		if _, ok := r.variants[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Deps are the collaborators the default variants are built from.
type Deps struct {
	Text     normalize.TextExtractor
	Rates    *rates.Catalog
	Distance rates.DistanceProvider
	Logger   *slog.Logger
}

// DefaultRegistry registers every supported partner.
func DefaultRegistry(d Deps) *Registry {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()
	add := func(p constants.Partner, n normalize.Normalizer, pricer PricerFactory) {
		join, ok := delta.JoinSpecFor(p)
		if !ok {
			panic(fmt.Sprintf("reconcile: no join spec for %s", p))
		}
		r.Register(Variant{Partner: p, Normalizer: n, Join: join, Pricer: pricer})
	}

	add(constants.Brenger, normalize.NewBrenger(d.Text, logger), tablePricer(d.Rates, constants.Brenger))
	add(constants.Wuunder, normalize.NewWuunder(d.Text, logger), tablePricer(d.Rates, constants.Wuunder))
	add(constants.Tadde, normalize.NewTadde(d.Text, logger), tablePricer(d.Rates, constants.Tadde))
	add(constants.Transpoksi, normalize.NewTranspoksi(d.Text, logger), tablePricer(d.Rates, constants.Transpoksi))
	add(constants.LiberoLogistics, normalize.NewLibero(d.Text, logger), tablePricer(d.Rates, constants.LiberoLogistics))
	add(constants.SWDeVries, normalize.NewSWDeVries(logger), tablePricer(d.Rates, constants.SWDeVries))
	add(constants.MagicMovers, normalize.NewMagicMovers(logger), formulaPricer(rates.MagicMoversPricing(), d.Distance, logger))
	return r
}

func tablePricer(c *rates.Catalog, partner constants.Partner) PricerFactory {
	return func(ctx context.Context) (delta.Pricer, []entity.Diagnostic, error) {
		if c == nil {
			return nil, nil, fmt.Errorf("%s: no rate catalog configured: %w", partner, common.ErrRateData)
		}
		res, diags, err := c.TableResolver(ctx, partner)
		if err != nil {
			return nil, nil, err
		}
		return delta.TablePricer(res), diags, nil
	}
}

func formulaPricer(pricing rates.FormulaPricing, distance rates.DistanceProvider, logger *slog.Logger) PricerFactory {
	return func(context.Context) (delta.Pricer, []entity.Diagnostic, error) {
		if err := pricing.Validate(); err != nil {
			return nil, nil, fmt.Errorf("formula pricing: %w", err)
		}
		return delta.FormulaPricer(rates.NewFormulaResolver(pricing, distance, logger)), nil, nil
	}
}
