package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, cmd usecase.CreateUserCommand) (domain.User, error)
}

// Authenticator signs users in.
type Authenticator interface {
	Login(ctx context.Context, cmd usecase.LoginCommand) (usecase.LoginResult, error)
}

// AuthHandler exposes registration and login.
type AuthHandler struct {
	registration Registrar
	auth         Authenticator
	metrics      DomainMetrics
}

// NewAuthHandler builds an AuthHandler. metrics may be nil.
func NewAuthHandler(registration Registrar, auth Authenticator, metrics DomainMetrics) *AuthHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &AuthHandler{registration: registration, auth: auth, metrics: metrics}
}

// RegisterRoutes binds the public auth endpoints. loginMiddlewares run before Login.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	r.POST("/register", h.Register)
	handlers := make([]gin.HandlerFunc, 0, len(loginMiddlewares)+1)
	handlers = append(handlers, loginMiddlewares...)
	r.POST("/login", append(handlers, h.Login)...)
}

// Register creates an active account and returns it with 201.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	user, err := h.registration.Register(c.Request.Context(), usecase.CreateUserCommand{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		h.metrics.Registration(registrationOutcome(err))
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: domain.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email"},
			{Err: domain.ErrInvalidName, Status: http.StatusBadRequest, Message: "invalid name"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	h.metrics.Registration("created")
	c.JSON(http.StatusCreated, newUserPayload(user))
}

func registrationOutcome(err error) string {
	switch {
	case errors.Is(err, usecase.ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, usecase.ErrPasswordPolicyViolation), errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrInvalidName):
		return "invalid"
	default:
		return "error"
	}
}

// Login verifies credentials and returns a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginCommand{
		Email:    strings.TrimSpace(req.Email),
		Password: req.Password,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
			{Err: usecase.ErrInactiveUser, Status: http.StatusForbidden, Message: "account is not active"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	expiresIn := int(time.Until(result.Token.ExpiresAt).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	c.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.Token.Token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		ExpiresAt:   result.Token.ExpiresAt,
		User:        newUserPayload(result.User),
	})
}
