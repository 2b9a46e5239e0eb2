package constants

// RunState is the lifecycle state of a single reconciliation run.
type RunState string

// Stable values (stored verbatim in the run history).
const (
	RunStateStart            RunState = "START"
	RunStateNormalize        RunState = "NORMALIZE"
	RunStateResolveAndJoin   RunState = "RESOLVE_AND_JOIN"
	RunStateSuccess          RunState = "SUCCESS"
	RunStateParseFailed      RunState = "PARSE_FAILED"      // normalization could not produce lines
	RunStateResolutionFailed RunState = "RESOLUTION_FAILED" // rate data, ledger or join step failed
)

// Terminal reports whether no further transitions happen from s.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateSuccess, RunStateParseFailed, RunStateResolutionFailed:
		return true
	}
	return false
}

// ResolutionStatus describes how the expected price for one line was obtained.
type ResolutionStatus string

const (
	ResolutionResolved   ResolutionStatus = "RESOLVED"
	ResolutionUnresolved ResolutionStatus = "UNRESOLVED"
	ResolutionOnRequest  ResolutionStatus = "ON_REQUEST"
)
