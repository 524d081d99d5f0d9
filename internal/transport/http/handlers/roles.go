package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

// RoleCatalog manages roles.
type RoleCatalog interface {
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, rawRoleID string) (domain.Role, error)
	CreateRole(ctx context.Context, cmd usecase.CreateRoleCommand) (domain.Role, error)
	ChangeDisplayName(ctx context.Context, rawRoleID, displayName string) (domain.Role, error)
	DeleteRole(ctx context.Context, rawRoleID string) error
}

type RoleHandler struct {
	roles RoleCatalog
}

func NewRoleHandler(roles RoleCatalog) *RoleHandler {
	return &RoleHandler{roles: roles}
}

var roleCases = []ErrorCase{
	{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
	{Err: usecase.ErrRoleExists, Status: http.StatusConflict, Message: "role already exists"},
	{Err: usecase.ErrPermissionNotFound, Status: http.StatusBadRequest, Message: "permission not found"},
	{Err: domain.ErrInvalidName, Status: http.StatusBadRequest, Message: "invalid role name"},
	{Err: domain.ErrInvalidPermissionKey, Status: http.StatusBadRequest, Message: "invalid permission key"},
}

// List returns every role.
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		RespondWithMappedError(c, err, roleCases, http.StatusInternalServerError, "failed to list roles")
		return
	}

	payload := make([]RolePayload, 0, len(roles))
	for _, role := range roles {
		payload = append(payload, newRolePayload(role))
	}
	c.JSON(http.StatusOK, payload)
}

// Get returns one role.
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.roles.GetRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, roleCases, http.StatusInternalServerError, "failed to load role")
		return
	}
	c.JSON(http.StatusOK, newRolePayload(role))
}

// Create adds a role granting the listed permission keys.
func (h *RoleHandler) Create(c *gin.Context) {
	var req RoleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	keys := make([]string, 0, len(req.PermissionKeys))
	for _, key := range req.PermissionKeys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}

	role, err := h.roles.CreateRole(c.Request.Context(), usecase.CreateRoleCommand{
		Name:           strings.TrimSpace(req.Name),
		DisplayName:    strings.TrimSpace(req.DisplayName),
		PermissionKeys: keys,
	})
	if err != nil {
		RespondWithMappedError(c, err, roleCases, http.StatusInternalServerError, "failed to create role")
		return
	}
	c.JSON(http.StatusCreated, newRolePayload(role))
}

// Rename changes the display name. The machine name is immutable.
func (h *RoleHandler) Rename(c *gin.Context) {
	var req RoleRenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role payload"))
		return
	}

	role, err := h.roles.ChangeDisplayName(c.Request.Context(), c.Param("id"), strings.TrimSpace(req.DisplayName))
	if err != nil {
		RespondWithMappedError(c, err, roleCases, http.StatusInternalServerError, "failed to rename role")
		return
	}
	c.JSON(http.StatusOK, newRolePayload(role))
}

// Delete removes a role and its assignments.
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.roles.DeleteRole(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, roleCases, http.StatusInternalServerError, "failed to delete role")
		return
	}
	c.Status(http.StatusNoContent)
}
