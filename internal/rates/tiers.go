package rates

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Tier is one step of a step-function price. UpTo is inclusive; -1 means unlimited.
type Tier struct {
	UpTo  int64
	Price decimal.Decimal
}

// priceFor walks ordered tiers and returns the price of the first tier covering v.
func priceFor(tiers []Tier, v decimal.Decimal) (decimal.Decimal, bool) {
	for _, t := range tiers {
		if t.UpTo == -1 || v.LessThanOrEqual(decimal.NewFromInt(t.UpTo)) {
			return t.Price, true
		}
	}
	return decimal.Zero, false
}

// validateTiers checks that tiers step strictly upward and end with an unlimited tier.
func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return errors.New("at least one tier is required")
	}
	if tiers[len(tiers)-1].UpTo != -1 {
		return errors.New("last tier must be unlimited (-1)")
	}
	for i := 1; i < len(tiers); i++ {
		prev, cur := tiers[i-1], tiers[i]
		if prev.UpTo == -1 {
			return errors.New("no tiers allowed after unlimited tier")
		}
		if cur.UpTo != -1 && cur.UpTo <= prev.UpTo {
			return errors.New("tiers must be strictly increasing")
		}
	}
	for _, t := range tiers {
		if t.Price.IsNegative() {
			return errors.New("tier prices must be non-negative")
		}
	}
	return nil
}
