package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

// CategoryCatalog defines user categories.
type CategoryCatalog interface {
	CreateCategory(ctx context.Context, cmd usecase.CreateCategoryCommand) (domain.UserCategory, error)
}

type CategoryHandler struct {
	categories CategoryCatalog
}

func NewCategoryHandler(categories CategoryCatalog) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// Create adds a category granting the listed permission ids.
func (h *CategoryHandler) Create(c *gin.Context) {
	var req CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid category payload"))
		return
	}

	category, err := h.categories.CreateCategory(c.Request.Context(), usecase.CreateCategoryCommand{
		Code:          strings.TrimSpace(req.Code),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCategoryExists, Status: http.StatusConflict, Message: "category already exists"},
			{Err: usecase.ErrPermissionNotFound, Status: http.StatusBadRequest, Message: "permission not found"},
			{Err: domain.ErrDuplicateIdentifier, Status: http.StatusBadRequest, Message: "duplicate permission id"},
			{Err: domain.ErrInvalidName, Status: http.StatusBadRequest, Message: "invalid category"},
		}, http.StatusInternalServerError, "failed to create category")
		return
	}
	c.JSON(http.StatusCreated, newCategoryPayload(category))
}
