package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

// contextKey keeps infrastructure values apart from other packages' keys.
type contextKey string

// TraceIDContextKey holds the id that traceHandler copies onto log records.
const TraceIDContextKey contextKey = "trace_id"

// WithTraceID returns ctx carrying traceID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the trace id stored in ctx, or "".
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDContextKey).(string)
	return id
}

// EnsureTraceID gives ctx a fresh UUID trace id unless it already has one.
// Offline runs use it so every log line of one report shares an id.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.NewString())
}
