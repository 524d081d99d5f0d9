package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appLogger "github.com/wasipo/harbor-sub000/internal/infra/logger"
)

// healthPaths are polled by orchestrators and only logged at debug level.
var healthPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

// Logger writes one access log line per request after the handler chain finishes.
// Client IPs are masked; the level follows the response status.
func Logger(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level, msg := accessLevel(c, status)
		ce := log.Check(level, msg)
		if ce == nil {
			return
		}

		fields := make([]zap.Field, 0, 12)
		fields = append(fields,
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.String("trace_id", GetTraceID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", appLogger.MaskIP(c.ClientIP())),
		)
		if userID := c.GetString(UserIDKey); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		ce.Write(fields...)
	}
}

func accessLevel(c *gin.Context, status int) (zapcore.Level, string) {
	switch {
	case len(c.Errors) > 0:
		return zapcore.ErrorLevel, "request failed"
	case status >= 500:
		return zapcore.WarnLevel, "request completed with server error"
	}
	if _, ok := healthPaths[c.Request.URL.Path]; ok {
		return zapcore.DebugLevel, "request completed"
	}
	return zapcore.InfoLevel, "request completed"
}
