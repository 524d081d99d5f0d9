package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/usecase"
)

const currentUserKey = "current_user"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// Authenticator resolves a bearer token to the calling user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (usecase.CurrentUser, error)
}

// PermissionChecker answers whether a user holds a permission key.
type PermissionChecker interface {
	HasPermission(ctx context.Context, current usecase.CurrentUser, key string) (bool, error)
}

// AuthorizationRecorder observes permission gate decisions.
type AuthorizationRecorder interface {
	AuthorizationCheck(permission string, allowed bool)
}

// RequireAuth validates the Authorization header and attaches the current user.
func RequireAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		current, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrNotAuthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authentication failed"))
			return
		}

		c.Set(currentUserKey, current)
		c.Set(UserIDKey, current.UserID.String())

		c.Next()
	}
}

// RequirePermission rejects callers without the permission key with 403.
func RequirePermission(checker PermissionChecker, recorder AuthorizationRecorder, key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		allowed, err := checker.HasPermission(c.Request.Context(), current, key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authorization failed"))
			return
		}
		if recorder != nil {
			recorder.AuthorizationCheck(key, allowed)
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

// CurrentUser returns the user attached by RequireAuth.
func CurrentUser(c *gin.Context) (usecase.CurrentUser, bool) {
	v, exists := c.Get(currentUserKey)
	if !exists {
		return usecase.CurrentUser{}, false
	}
	current, ok := v.(usecase.CurrentUser)
	return current, ok && current.IsAuthenticated()
}
