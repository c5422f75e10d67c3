package common

import (
	"context"
	"time"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyFormID    contextKey = "form_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithFormID tags the context with the form being processed.
func WithFormID(ctx context.Context, formID string) context.Context {
	return context.WithValue(ctx, ContextKeyFormID, formID)
}

// FormIDFromContext extracts the form ID from context
func FormIDFromContext(ctx context.Context) string {
	if formID, ok := ctx.Value(ContextKeyFormID).(string); ok {
		return formID
	}
	return ""
}

// WithTimeout creates a context with the specified timeout; a non-positive
// timeout returns the parent unchanged with a no-op cancel.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	return context.WithTimeout(parent, timeout)
}
