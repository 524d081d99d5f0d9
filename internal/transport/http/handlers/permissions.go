package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

// PermissionCatalog manages the permission catalog.
type PermissionCatalog interface {
	CreatePermission(ctx context.Context, cmd usecase.CreatePermissionCommand) (domain.Permission, error)
	ListPermissions(ctx context.Context, resource string) ([]domain.Permission, error)
	GetPermission(ctx context.Context, key string) (domain.Permission, error)
}

type PermissionHandler struct {
	permissions PermissionCatalog
}

func NewPermissionHandler(permissions PermissionCatalog) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

var permissionCases = []ErrorCase{
	{Err: usecase.ErrPermissionNotFound, Status: http.StatusNotFound, Message: "permission not found"},
	{Err: usecase.ErrPermissionExists, Status: http.StatusConflict, Message: "permission already exists"},
	{Err: domain.ErrInvalidPermissionKey, Status: http.StatusBadRequest, Message: "permission key must look like resource.action"},
	{Err: domain.ErrInvalidName, Status: http.StatusBadRequest, Message: "invalid permission name"},
}

// List returns all permissions, or those of ?resource= when given.
func (h *PermissionHandler) List(c *gin.Context) {
	permissions, err := h.permissions.ListPermissions(c.Request.Context(), strings.TrimSpace(c.Query("resource")))
	if err != nil {
		RespondWithMappedError(c, err, permissionCases, http.StatusInternalServerError, "failed to list permissions")
		return
	}
	c.JSON(http.StatusOK, newPermissionPayloads(permissions))
}

// Get returns the permission identified by its key.
func (h *PermissionHandler) Get(c *gin.Context) {
	permission, err := h.permissions.GetPermission(c.Request.Context(), c.Param("key"))
	if err != nil {
		RespondWithMappedError(c, err, permissionCases, http.StatusInternalServerError, "failed to load permission")
		return
	}
	c.JSON(http.StatusOK, newPermissionPayload(permission))
}

// Create adds a permission. The key is split into resource and action on its first dot.
func (h *PermissionHandler) Create(c *gin.Context) {
	var req PermissionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid permission payload"))
		return
	}

	permission, err := h.permissions.CreatePermission(c.Request.Context(), usecase.CreatePermissionCommand{
		Key:         strings.TrimSpace(req.Key),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	})
	if err != nil {
		RespondWithMappedError(c, err, permissionCases, http.StatusInternalServerError, "failed to create permission")
		return
	}
	c.JSON(http.StatusCreated, newPermissionPayload(permission))
}
