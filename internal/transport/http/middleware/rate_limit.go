package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appLogger "github.com/wasipo/harbor-sub000/internal/infra/logger"
)

const (
	rateLimitProblemType  = "about:blank#rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// AttemptCounter counts attempts per key within a window.
type AttemptCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a fixed-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit rejects requests beyond rule.Limit per window with 429.
// Counter failures are logged and the request is let through.
func RateLimit(counter AttemptCounter, rule RateLimitRule, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil || rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if rule.Name == "" {
		rule.Name = "default"
	}

	return func(c *gin.Context) {
		identifier, ok := rule.Identifier(c)
		if !ok {
			c.Next()
			return
		}

		count, resetIn, err := counter.Hit(c.Request.Context(), rule.Name+":"+identifier, rule.Window)
		if err != nil {
			appLogger.FromContext(c.Request.Context(), logger).Warn("rate limit check failed", zap.String("rule", rule.Name), zap.Error(err))
			c.Next()
			return
		}

		remaining := rule.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetIn).Unix(), 10))

		if count > int64(rule.Limit) {
			retry := int(math.Ceil(resetIn.Seconds()))
			headers.Set("Retry-After", strconv.Itoa(retry))
			appLogger.FromContext(c.Request.Context(), logger).Info("rate limit exceeded",
				zap.String("rule", rule.Name),
				zap.String("client_ip", appLogger.MaskIP(identifier)),
				zap.Int64("count", count),
			)

			instance := c.FullPath()
			if instance == "" {
				instance = c.Request.URL.Path
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
				Type:       rateLimitProblemType,
				Title:      rateLimitProblemTitle,
				Status:     http.StatusTooManyRequests,
				Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", retry),
				Instance:   instance,
				RetryAfter: retry,
				TraceID:    GetTraceID(c),
			})
			return
		}

		c.Next()
	}
}
