package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	appctx "foodcoop/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// Trace middleware starts a server span, continuing an incoming W3C trace
// context, and attaches request and trace ids to the request context.
func Trace() gin.HandlerFunc {
	tracer := otel.Tracer("foodcoop/http")
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		tc := appctx.NewTraceContext(ctx, c.GetHeader(HeaderRequestID))
		if incoming := c.GetHeader(HeaderTraceID); incoming != "" && !span.SpanContext().IsValid() {
			tc.TraceID = incoming
		}
		c.Request = c.Request.WithContext(appctx.WithTrace(ctx, tc))

		c.Set("trace_id", tc.TraceID)
		c.Set("request_id", tc.RequestID)
		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}
