package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext contains request tracing information.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetTraceID returns trace ID from context or empty string.
func GetTraceID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return ""
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext builds a TraceContext for an incoming request.
// When ctx carries a valid otel span, its ids are reused so logs and spans correlate.
func NewTraceContext(ctx context.Context, requestID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return &TraceContext{
			TraceID:   sc.TraceID().String(),
			SpanID:    sc.SpanID().String(),
			RequestID: requestID,
		}
	}
	return &TraceContext{
		TraceID:   uuid.NewString(),
		SpanID:    uuid.NewString()[:16],
		RequestID: requestID,
	}
}
