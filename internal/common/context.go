package common

import "context"

type traceKey struct{}

// WithTraceID tags ctx with the trace ID of the job it serves. An empty id
// leaves ctx untouched.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the ID set by WithTraceID, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
