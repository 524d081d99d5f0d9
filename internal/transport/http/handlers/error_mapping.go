package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// commonCases apply to every handler after its own cases.
var commonCases = []ErrorCase{
	{Err: domain.ErrInvalidIdentifier, Status: http.StatusBadRequest, Message: "invalid identifier"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrNotAuthenticated, Status: http.StatusUnauthorized, Message: "authentication required"},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Unmapped errors are attached to the gin context so the access log records them.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, list := range [][]ErrorCase{cases, commonCases} {
		for _, cs := range list {
			if cs.Err != nil && errors.Is(err, cs.Err) {
				c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
				return
			}
		}
	}

	_ = c.Error(err)
	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}
