package rates

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

// Catalog builds fresh resolvers for a run from a Source.
type Catalog struct {
	src   Source
	zones FallbackZones
}

func NewCatalog(src Source) *Catalog {
	return &Catalog{src: src, zones: GermanyZones()}
}

// TableResolver loads the partner's rate table (and fallback table when declared).
// Duplicate rows come back as diagnostics.
func (c *Catalog) TableResolver(ctx context.Context, partner constants.Partner) (*TableResolver, []entity.Diagnostic, error) {
	pricing, ok := TablePricingFor(partner)
	if !ok {
		return nil, nil, fmt.Errorf("%s is not table priced: %w", partner, common.ErrInvalidInput)
	}
	table, err := c.src.Load(ctx, pricing.Table)
	if err != nil {
		return nil, nil, err
	}
	diags := duplicateDiagnostics(table)

	var fallback *GeoFallback
	if pricing.Fallback {
		zoneTable, err := c.src.Load(ctx, FallbackTable)
		if err != nil {
			return nil, nil, err
		}
		diags = append(diags, duplicateDiagnostics(zoneTable)...)
		fallback = NewGeoFallback(c.zones, ZonePricesFromTable(zoneTable, c.zones.ZoneColumn))
	}
	return NewTableResolver(pricing, table, fallback), diags, nil
}

func duplicateDiagnostics(t *Table) []entity.Diagnostic {
	var out []entity.Diagnostic
	for _, d := range t.Duplicates() {
		out = append(out, entity.Warn(common.CodeDuplicateRate, t.Name,
			"row %d repeats %q at weight %s; first row kept", d.Position, d.Category, d.Weight))
	}
	return out
}
