package constants

import (
	"strings"
)

// Partner identifies a logistics partner whose invoices can be reconciled.
type Partner string

const (
	Brenger         Partner = "brenger"
	Wuunder         Partner = "wuunder"
	Tadde           Partner = "tadde"
	Transpoksi      Partner = "transpoksi"
	LiberoLogistics Partner = "libero_logistics"
	SWDeVries       Partner = "swdevries"
	MagicMovers     Partner = "magic_movers"
)

var allPartners = []Partner{
	Brenger,
	Wuunder,
	Tadde,
	Transpoksi,
	LiberoLogistics,
	SWDeVries,
	MagicMovers,
}

// Partners returns every supported partner in a stable order.
func Partners() []Partner {
	out := make([]Partner, len(allPartners))
	copy(out, allPartners)
	return out
}

func PartnersAsStringSlice() []string {
	result := make([]string, len(allPartners))
	for i, p := range allPartners {
		result[i] = string(p)
	}
	return result
}

func (p Partner) String() string { return string(p) }

// ParsePartner maps free-form input (CLI flags, file prefixes, chat channel names)
// onto a Partner.
func ParsePartner(input string) (Partner, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	synonyms := map[string]Partner{
		"libero":          LiberoLogistics,
		"libero_logistic": LiberoLogistics,
		"sw_de_vries":     SWDeVries,
		"swdv":            SWDeVries,
		"magicmovers":     MagicMovers,
		"magic":           MagicMovers,
		"tad":             Tadde,
	}
	if p, ok := synonyms[normalized]; ok {
		return p, true
	}

	for _, p := range allPartners {
		if normalized == string(p) {
			return p, true
		}
	}
	return "", false
}
