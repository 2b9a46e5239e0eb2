package rates

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
)

// Resolution is the outcome of pricing one line.
type Resolution struct {
	Price  decimal.Decimal
	Status constants.ResolutionStatus
	Reason string
}

func Resolved(price decimal.Decimal) Resolution {
	return Resolution{Price: price, Status: constants.ResolutionResolved}
}

func Unresolved(format string, args ...any) Resolution {
	return Resolution{Price: decimal.Zero, Status: constants.ResolutionUnresolved, Reason: fmt.Sprintf(format, args...)}
}

func OnRequest(format string, args ...any) Resolution {
	return Resolution{Price: decimal.Zero, Status: constants.ResolutionOnRequest, Reason: fmt.Sprintf(format, args...)}
}

// IsResolved reports whether Price is a real expected price.
func (r Resolution) IsResolved() bool {
	return r.Status == constants.ResolutionResolved
}

// Expected returns the price counted in delta computation; unresolved lines count as zero.
func (r Resolution) Expected() decimal.Decimal {
	if !r.IsResolved() {
		return decimal.Zero
	}
	return r.Price
}
