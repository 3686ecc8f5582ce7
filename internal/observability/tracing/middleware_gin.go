package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/vehicleguard/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "vehicleguard/http"

// GinMiddleware opens a server span per request, continuing any inbound trace.
// Tenant and gateway attributes are added after the handlers ran, since the
// API key middleware resolves the company further down the chain.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer(instrumentation)
	return func(c *gin.Context) {
		parent := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.Start(parent, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		if id := obscontext.RequestIDFromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("vehicleguard.request_id", id))
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		attrs := []attribute.KeyValue{attribute.Int("http.response.status_code", status)}
		if company := obscontext.CompanyIDFromContext(c.Request.Context()); company != "" {
			attrs = append(attrs, attribute.String("vehicleguard.company_id", company))
		}
		if gateway := c.GetString("gateway"); gateway != "" {
			attrs = append(attrs, attribute.String("vehicleguard.gateway", gateway))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status < http.StatusInternalServerError {
			return
		}
		if last := c.Errors.Last(); last != nil {
			span.RecordError(SafeError(last.Err))
		}
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
