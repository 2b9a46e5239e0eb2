package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRunID   contextKey = "run_id"
	ContextKeyPartner contextKey = "partner"
)

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, ContextKeyRunID, runID)
}

// RunIDFromContext extracts the run ID from context
func RunIDFromContext(ctx context.Context) string {
	if runID, ok := ctx.Value(ContextKeyRunID).(string); ok {
		return runID
	}
	return ""
}

// WithPartner adds the partner under reconciliation to the context
func WithPartner(ctx context.Context, partner string) context.Context {
	return context.WithValue(ctx, ContextKeyPartner, partner)
}

// PartnerFromContext extracts the partner from context
func PartnerFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(ContextKeyPartner).(string); ok {
		return p
	}
	return ""
}

// WithTimeout creates a context with the specified timeout. A non-positive
// timeout returns a cancelable copy of parent.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
