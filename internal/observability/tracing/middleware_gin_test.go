package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/vehicleguard/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareRecordsTenantAndGateway(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/gateways/:gateway/test", func(c *gin.Context) {
		c.Set("gateway", c.Param("gateway"))
		c.Request = c.Request.WithContext(obscontext.WithCompanyID(c.Request.Context(), "100"))
		_ = c.Error(errors.New("token 12345678901 rejected"))
		c.Status(http.StatusBadGateway)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/gateways/asaas/test", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST /api/gateways/:gateway/test", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "100", attrs["vehicleguard.company_id"].AsString())
	assert.Equal(t, "asaas", attrs["vehicleguard.gateway"].AsString())
	assert.Equal(t, int64(http.StatusBadGateway), attrs["http.response.status_code"].AsInt64())

	require.Len(t, span.Events(), 1)
	for _, kv := range span.Events()[0].Attributes {
		if kv.Key == "exception.message" {
			assert.NotContains(t, kv.Value.AsString(), "12345678901")
		}
	}
}
