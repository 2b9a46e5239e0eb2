package reconcile

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/carrier-reconciler/constants"
	"github.com/joseph-ayodele/carrier-reconciler/internal/common"
	"github.com/joseph-ayodele/carrier-reconciler/internal/entity"
)

// Chat reactions for operator notification.
const (
	ReactionOK       = "white_check_mark"
	ReactionOverdue  = "large_red_square"
	perfectMatchNote = "All prices match perfectly"
)

// Outcome is the result of one Evaluate call.
type Outcome struct {
	RunID           string
	Partner         constants.Partner
	State           constants.RunState
	WithinThreshold bool
	ParsedOK        bool
	Threshold       decimal.Decimal
	Result          *entity.RunResult
	Err             error
}

// Failed reports whether the run ended outside SUCCESS.
func (o Outcome) Failed() bool {
	return o.State != constants.RunStateSuccess
}

// ComparisonPossible is false for failed runs.
func (o Outcome) ComparisonPossible() bool {
	return o.Result != nil && o.Result.ComparisonPossible
}

// Reaction returns the chat reaction for the run, or "" when none applies.
func (o Outcome) Reaction() string {
	switch {
	case !o.ComparisonPossible():
		return ""
	case o.WithinThreshold:
		return ReactionOK
	default:
		return ReactionOverdue
	}
}

// Message is a human-readable summary for operators.
func (o Outcome) Message() string {
	if o.Failed() {
		reason := "unknown error"
		if o.Err != nil {
			reason = common.InnermostMessage(o.Err)
		}
		return fmt.Sprintf("%s: reconciliation failed (%s): %s", o.Partner, o.State, reason)
	}

	r := o.Result
	var b strings.Builder
	invoice := r.Meta.Number
	if invoice == "" {
		invoice = "unnumbered invoice"
	}
	fmt.Fprintf(&b, "%s %s: ", o.Partner, invoice)
	switch {
	case r.PerfectMatch():
		fmt.Fprintf(&b, "%s (%d rows)", perfectMatchNote, len(r.Rows))
	case len(r.Rows) == 0:
		b.WriteString("no invoice lines matched the ledger")
	case !r.ComparisonPossible:
		fmt.Fprintf(&b, "no expected prices could be resolved for %d rows", len(r.Rows))
	default:
		fmt.Fprintf(&b, "delta %s over %d rows (threshold %s", r.DeltaSum.StringFixed(2), len(r.Rows), o.Threshold.StringFixed(2))
		if o.WithinThreshold {
			b.WriteString(", within)")
		} else {
			b.WriteString(", exceeded)")
		}
		if n := len(r.PositiveDeltas()); n > 0 {
			fmt.Fprintf(&b, "; %d overcharged", n)
		}
	}
	if r.Unmatched > 0 {
		fmt.Fprintf(&b, "; %d unmatched", r.Unmatched)
	}
	if w := warnings(r.Diagnostics); w > 0 {
		fmt.Fprintf(&b, "; %d warnings", w)
	}
	return b.String()
}

func warnings(ds []entity.Diagnostic) int {
	n := 0
	for _, d := range ds {
		if d.Severity != entity.SeverityInfo {
			n++
		}
	}
	return n
}
