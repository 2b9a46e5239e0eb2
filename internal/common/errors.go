package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrRateData     = errors.New("rate data unavailable")
	ErrExtract      = errors.New("text extraction failed")
)

// Diagnostic codes attached to runs and lines. Warnings never abort a run.
const (
	CodeUnresolvedPrice = "UNRESOLVED_PRICE"
	CodeTotalMismatch   = "TOTAL_MISMATCH"
	CodeMissingJoinKey  = "MISSING_JOIN_KEY"
	CodeDroppedRecord   = "DROPPED_RECORD"
	CodeUnmatchedLine   = "UNMATCHED_LINE"
	CodeDuplicateRate   = "DUPLICATE_RATE_ROW"
	CodeDistance        = "DISTANCE_UNAVAILABLE"
)

// EmptyDocumentError means normalization produced no usable lines, or a line
// without an identifier or charged price.
type EmptyDocumentError struct {
	Partner string
	Reason  string
}

func (e *EmptyDocumentError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: document yielded no shipment lines", e.Partner)
	}
	return fmt.Sprintf("%s: document yielded no shipment lines: %s", e.Partner, e.Reason)
}

// UnsupportedPartnerError is returned for a partner outside the registry.
type UnsupportedPartnerError struct {
	Partner string
}

func (e *UnsupportedPartnerError) Error() string {
	return fmt.Sprintf("unsupported partner %q", e.Partner)
}

// MissingJoinKeyError marks a line that cannot be joined to the ledger.
type MissingJoinKeyError struct {
	Partner string
	Field   string
	Line    int
}

func (e *MissingJoinKeyError) Error() string {
	return fmt.Sprintf("%s: line %d has no %s", e.Partner, e.Line, e.Field)
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// InnermostMessage returns the message of the deepest wrapped error.
func InnermostMessage(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) error {
	return InternalError(fmt.Sprintf(format, args...))
}

// ToStatus maps domain errors onto gRPC status errors.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	var unsupported *UnsupportedPartnerError
	var empty *EmptyDocumentError
	switch {
	case errors.As(err, &unsupported), errors.As(err, &empty), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	default:
		return InternalError(err.Error())
	}
}
