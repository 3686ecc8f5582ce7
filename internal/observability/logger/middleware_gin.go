package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	auditcontext "github.com/smallbiznis/vehicleguard/internal/auditcontext"
	obscontext "github.com/smallbiznis/vehicleguard/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging.
type MiddlewareConfig struct {
	Debug bool
	// QuietRoutes are logged at debug level. Defaults to /health and /metrics.
	QuietRoutes []string
	// ErrorClassifier maps the last handler error to the envelope type and code.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware assigns a request id, seeds the audit context and writes one
// "http_request" entry per request once the handlers have run.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	quiet := map[string]struct{}{}
	routes := cfg.QuietRoutes
	if len(routes) == 0 {
		routes = []string{"/health", "/metrics"}
	}
	for _, r := range routes {
		quiet[strings.TrimSpace(r)] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		id := requestID(c)

		ctx := obscontext.WithRequestID(c.Request.Context(), id)
		ctx = auditcontext.WithRequestID(ctx, id)
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		}
		if gateway := c.GetString("gateway"); gateway != "" {
			fields = append(fields, zap.String("gateway", gateway))
		}

		if last := c.Errors.Last(); last != nil {
			errType, code := "internal_error", ""
			if cfg.ErrorClassifier != nil {
				errType, code = cfg.ErrorClassifier(last.Err)
			}
			fields = append(fields, zap.String("error_type", errType))
			if code != "" {
				fields = append(fields, zap.String("error_code", code))
			}
			if cfg.Debug {
				fields = append(fields, zap.String("error", last.Err.Error()))
			}
		}

		_, isQuiet := quiet[route]
		if ce := FromContext(c.Request.Context()).Check(levelFor(status, isQuiet), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func levelFor(status int, quiet bool) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case quiet:
		return zapcore.DebugLevel
	case status == http.StatusTooManyRequests:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// requestID reuses an inbound X-Request-Id or mints a new one and echoes it back.
func requestID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(requestIDHeader, id)
	return id
}
