package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/transport/http/middleware"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

// DashboardQuery builds the signed-in user's dashboard.
type DashboardQuery interface {
	Dashboard(ctx context.Context, current usecase.CurrentUser) (usecase.Dashboard, error)
}

// DashboardHandler serves the dashboard of the current user.
type DashboardHandler struct {
	query DashboardQuery
}

func NewDashboardHandler(query DashboardQuery) *DashboardHandler {
	return &DashboardHandler{query: query}
}

// Show returns the user, roles, active categories and effective permissions.
func (h *DashboardHandler) Show(c *gin.Context) {
	current, _ := middleware.CurrentUser(c)

	dashboard, err := h.query.Dashboard(c.Request.Context(), current)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	resp := DashboardResponse{
		User:        newUserPayload(dashboard.User),
		Roles:       make([]RolePayload, 0, len(dashboard.Roles)),
		Categories:  make([]CategoryPayload, 0, len(dashboard.Categories)),
		Permissions: newPermissionPayloads(dashboard.Permissions),
	}
	for _, role := range dashboard.Roles {
		resp.Roles = append(resp.Roles, newRolePayload(role))
	}
	for _, category := range dashboard.Categories {
		resp.Categories = append(resp.Categories, newCategoryPayload(category))
	}
	if dashboard.PrimaryCategory != nil {
		primary := newCategoryPayload(*dashboard.PrimaryCategory)
		resp.PrimaryCategory = &primary
	}

	c.JSON(http.StatusOK, resp)
}
