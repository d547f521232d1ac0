package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

// traceIDKey is the context key under which the request correlation ID
// travels. The traceHandler copies the value onto every log record
// emitted with that context.
type traceIDKey struct{}

// WithTraceID returns a context carrying the given correlation ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// GetTraceID returns the correlation ID stored in ctx, or "" when the
// context never passed through WithTraceID.
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// EnsureTraceID attaches a fresh UUID when ctx carries no correlation
// ID yet. Contexts that already have one are returned unchanged.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.New().String())
}
