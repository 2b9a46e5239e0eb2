package entity

import "fmt"

// Severity of a Diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is a non-fatal finding attached to a run or a line.
type Diagnostic struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Ref      string   `json:"ref,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Ref != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", d.Severity, d.Code, d.Ref, d.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message)
}

// Warn builds a warning diagnostic.
func Warn(code, ref, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: SeverityWarning, Ref: ref, Message: fmt.Sprintf(format, args...)}
}

// Info builds an informational diagnostic.
func Info(code, ref, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: SeverityInfo, Ref: ref, Message: fmt.Sprintf(format, args...)}
}
