package rates

import (
	"time"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
)

// PriceCutoff is the date the current price columns took effect.
var PriceCutoff = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

// VersionStyle says how a partner names its pre-cutoff columns.
type VersionStyle int

const (
	// Unversioned partners only have "{route}{suffix}" columns.
	Unversioned VersionStyle = iota
	// VersionedSuffixed partners use "{route}-OLD{suffix}" before the cutoff.
	VersionedSuffixed
	// VersionedBare partners use "{route}-OLD" before the cutoff.
	VersionedBare
)

// TablePricing declares how a partner's expected price is read from a rate table.
type TablePricing struct {
	Partner  constants.Partner
	Table    string
	Suffix   string // appended to the route key, e.g. "-tadde"
	Style    VersionStyle
	Cutoff   time.Time
	Fallback bool // geographic fallback for shipments touching the fallback country
}

// Columns returns the candidate columns for route on date, most preferred first.
func (p TablePricing) Columns(route string, date time.Time) []string {
	current := route + p.Suffix
	if p.Style == Unversioned || !date.Before(p.Cutoff) {
		return []string{current}
	}
	switch p.Style {
	case VersionedSuffixed:
		return []string{route + "-OLD" + p.Suffix, current}
	default:
		return []string{route + "-OLD", current}
	}
}

const (
	otherPartnersTable = "prijslijst_other_partners"
	// FallbackTable holds the metro zone price per category.
	FallbackTable = "germany_libero_logistic"
)

var tablePricing = map[constants.Partner]TablePricing{
	constants.Brenger: {
		Partner: constants.Brenger,
		Table:   "prijslijst_brenger",
	},
	constants.Wuunder: {
		Partner: constants.Wuunder,
		Table:   "prijslijst_wuunder",
	},
	constants.Tadde: {
		Partner: constants.Tadde,
		Table:   otherPartnersTable,
		Suffix:  "-tadde",
		Style:   VersionedSuffixed,
		Cutoff:  PriceCutoff,
	},
	constants.Transpoksi: {
		Partner: constants.Transpoksi,
		Table:   otherPartnersTable,
		Suffix:  "-transpoksi",
		Style:   VersionedSuffixed,
		Cutoff:  PriceCutoff,
	},
	constants.LiberoLogistics: {
		Partner:  constants.LiberoLogistics,
		Table:    otherPartnersTable,
		Suffix:   "-libero_logistics",
		Style:    VersionedBare,
		Cutoff:   PriceCutoff,
		Fallback: true,
	},
	constants.SWDeVries: {
		Partner: constants.SWDeVries,
		Table:   otherPartnersTable,
		Suffix:  "-swdevries",
	},
}

// TablePricingFor returns the table pricing of partner. Formula-priced partners return false.
func TablePricingFor(partner constants.Partner) (TablePricing, bool) {
	p, ok := tablePricing[partner]
	return p, ok
}
