package logger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginLoggerKey    = "logger"
)

// healthPaths are hit every few seconds by the orchestrator; their summary
// lines are logged at debug.
var healthPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
}

// Middleware tags each request with a request id (honoring an inbound
// X-Request-Id), stores a request-scoped logger in both the gin and request
// contexts, and writes one summary line when the handler returns.
//
// Websocket upgrades only return when the stream closes, so their summary is
// logged as "stream closed" with the stream's lifetime.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := strings.TrimSpace(c.GetHeader(headerRequestID))
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set(ginLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(With(c.Request.Context(), reqLogger))

		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}

		switch {
		case len(c.Errors) > 0:
			reqLogger.Error("request", append(attrs, "errors", c.Errors.String())...)
		case upgrade && c.Writer.Status() == http.StatusSwitchingProtocols:
			reqLogger.Info("stream closed", attrs...)
		case isHealthCheck(path):
			reqLogger.Debug("request", attrs...)
		case c.Writer.Status() >= http.StatusInternalServerError:
			reqLogger.Warn("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

func isHealthCheck(path string) bool {
	_, ok := healthPaths[path]
	return ok
}

// FromGin returns the logger stored by Middleware.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginLoggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return From(c.Request.Context())
}
