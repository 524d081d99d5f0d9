package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	appLogger "github.com/wasipo/harbor-sub000/internal/infra/logger"
)

const (
	RequestIDHeader = "X-Request-ID"
	TraceIDHeader   = "X-Trace-ID"

	// gin context keys
	RequestIDKey = "request_id"
	TraceIDKey   = "trace_id"
	UserIDKey    = "user_id"

	maxCorrelationIDLength = 128
)

// Correlation stamps every request with a request id and a trace id, echoes both
// as response headers and puts the request id on the request context for logging.
//
// The request id comes from X-Request-ID when it is printable and short enough.
// The trace id follows the active span when Tracing runs first, then X-Trace-ID.
// Anything missing or malformed is replaced by a random UUID.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if !validCorrelationID(requestID) {
			requestID = uuid.NewString()
		}

		var traceID string
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		} else if incoming := c.GetHeader(TraceIDHeader); validCorrelationID(incoming) {
			traceID = incoming
		} else {
			traceID = uuid.NewString()
		}

		c.Set(RequestIDKey, requestID)
		c.Set(TraceIDKey, traceID)
		h := c.Writer.Header()
		h.Set(RequestIDHeader, requestID)
		h.Set(TraceIDHeader, traceID)
		c.Request = c.Request.WithContext(appLogger.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

func GetTraceID(c *gin.Context) string {
	return c.GetString(TraceIDKey)
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
