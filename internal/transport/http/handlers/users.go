package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/transport/http/middleware"
	"github.com/wasipo/harbor-sub000/internal/usecase"
)

// RoleAssigner grants and revokes roles.
type RoleAssigner interface {
	AssignRole(ctx context.Context, cmd usecase.AssignRoleCommand) (usecase.RoleAssignmentResult, error)
	RevokeRole(ctx context.Context, cmd usecase.RevokeRoleCommand) (usecase.RoleAssignmentResult, error)
	RevokeAllRoles(ctx context.Context, rawUserID string) (int, error)
	ListAssignments(ctx context.Context, rawUserID string) ([]domain.RoleAssignment, error)
}

// CategoryAssigner manages effective-dated category assignments.
type CategoryAssigner interface {
	AssignCategories(ctx context.Context, rawUserID string, cmd usecase.AssignCategoriesCommand) (domain.CategoryIDs, error)
	ExpireCategory(ctx context.Context, rawUserID, rawCategoryID string, until time.Time) error
	ActiveCategories(ctx context.Context, rawUserID string, asOf time.Time) ([]domain.CategoryAssignment, error)
}

// UserAdministrator reads and edits user accounts.
type UserAdministrator interface {
	GetUser(ctx context.Context, rawUserID string) (domain.User, error)
	ChangeStatus(ctx context.Context, rawUserID, rawStatus string) (domain.User, error)
	ChangeProfile(ctx context.Context, rawUserID string, cmd usecase.ChangeProfileCommand) (domain.User, error)
	DeleteUser(ctx context.Context, rawUserID string) error
	AssignRoles(ctx context.Context, rawUserID string, cmd usecase.AssignRolesCommand) error
}

// UserHandler exposes user administration endpoints under /users/:id.
type UserHandler struct {
	users       UserAdministrator
	assignments RoleAssigner
	categories  CategoryAssigner
	metrics     DomainMetrics
	now         func() time.Time
}

// NewUserHandler builds a UserHandler. metrics may be nil.
func NewUserHandler(users UserAdministrator, assignments RoleAssigner, categories CategoryAssigner, metrics DomainMetrics) *UserHandler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &UserHandler{
		users:       users,
		assignments: assignments,
		categories:  categories,
		metrics:     metrics,
		now:         time.Now,
	}
}

var userCases = []ErrorCase{
	{Err: domain.ErrInvalidStatus, Status: http.StatusBadRequest, Message: "invalid status"},
	{Err: domain.ErrInvalidName, Status: http.StatusBadRequest, Message: "invalid name"},
	{Err: domain.ErrInvalidEmail, Status: http.StatusBadRequest, Message: "invalid email"},
	{Err: usecase.ErrDuplicateEmail, Status: http.StatusConflict, Message: "email already registered"},
	{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
}

var assignmentCases = []ErrorCase{
	{Err: usecase.ErrInactiveUser, Status: http.StatusConflict, Message: "user is not active"},
	{Err: usecase.ErrRoleNotFound, Status: http.StatusNotFound, Message: "role not found"},
}

var categoryCases = []ErrorCase{
	{Err: usecase.ErrCategoryNotFound, Status: http.StatusNotFound, Message: "category not found"},
	{Err: usecase.ErrCategoryAssignmentNotFound, Status: http.StatusNotFound, Message: "category assignment not found"},
	{Err: domain.ErrDuplicateIdentifier, Status: http.StatusBadRequest, Message: "duplicate category id"},
	{Err: domain.ErrNoPrimaryCategory, Status: http.StatusBadRequest, Message: "at least one category is required"},
	{Err: domain.ErrInvalidEffectivePeriod, Status: http.StatusBadRequest, Message: "invalid effective period"},
}

// Get returns a user.
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, newUserPayload(user))
}

// ChangeStatus activates, deactivates or suspends a user.
func (h *UserHandler) ChangeStatus(c *gin.Context) {
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid status payload"))
		return
	}

	user, err := h.users.ChangeStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		RespondWithMappedError(c, err, userCases, http.StatusInternalServerError, "failed to change status")
		return
	}
	c.JSON(http.StatusOK, newUserPayload(user))
}

// ChangeProfile updates name, email or password.
func (h *UserHandler) ChangeProfile(c *gin.Context) {
	var req ChangeProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid profile payload"))
		return
	}

	user, err := h.users.ChangeProfile(c.Request.Context(), c.Param("id"), usecase.ChangeProfileCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		RespondWithMappedError(c, err, userCases, http.StatusInternalServerError, "failed to update profile")
		return
	}
	c.JSON(http.StatusOK, newUserPayload(user))
}

// Delete removes a user.
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignRole grants a role. Granting a held role answers 200 with changed=false.
func (h *UserHandler) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role assignment payload"))
		return
	}

	cmd := usecase.AssignRoleCommand{
		UserID: c.Param("id"),
		RoleID: strings.TrimSpace(req.RoleID),
	}
	if current, ok := middleware.CurrentUser(c); ok {
		cmd.AssignedByUserID = current.UserID.String()
	}

	result, err := h.assignments.AssignRole(c.Request.Context(), cmd)
	h.metrics.RoleAssignment("assign", assignmentOutcome(result, err))
	if err != nil {
		RespondWithMappedError(c, err, assignmentCases, http.StatusInternalServerError, "failed to assign role")
		return
	}

	status := http.StatusOK
	if result.Changed {
		status = http.StatusCreated
	}
	c.JSON(status, RoleAssignmentResponse{UserID: cmd.UserID, RoleID: cmd.RoleID, Changed: result.Changed})
}

// AssignRoles grants several roles in one transaction, skipping held roles.
func (h *UserHandler) AssignRoles(c *gin.Context) {
	var req AssignRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid role assignment payload"))
		return
	}

	cmd := usecase.AssignRolesCommand{RoleIDs: req.RoleIDs}
	if current, ok := middleware.CurrentUser(c); ok {
		cmd.AssignedByUserID = current.UserID.String()
	}

	ctx := c.Request.Context()
	if err := h.users.AssignRoles(ctx, c.Param("id"), cmd); err != nil {
		RespondWithMappedError(c, err, append(assignmentCases, ErrorCase{
			Err: domain.ErrDuplicateIdentifier, Status: http.StatusBadRequest, Message: "duplicate role id",
		}), http.StatusInternalServerError, "failed to assign roles")
		return
	}

	user, err := h.users.GetUser(ctx, c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, newUserPayload(user))
}

// RevokeRole removes a role. Revoking an unheld role answers 200 with changed=false.
func (h *UserHandler) RevokeRole(c *gin.Context) {
	cmd := usecase.RevokeRoleCommand{UserID: c.Param("id"), RoleID: c.Param("roleId")}

	result, err := h.assignments.RevokeRole(c.Request.Context(), cmd)
	h.metrics.RoleAssignment("revoke", assignmentOutcome(result, err))
	if err != nil {
		RespondWithMappedError(c, err, assignmentCases, http.StatusInternalServerError, "failed to revoke role")
		return
	}
	c.JSON(http.StatusOK, RoleAssignmentResponse{UserID: cmd.UserID, RoleID: cmd.RoleID, Changed: result.Changed})
}

// RevokeAllRoles removes every role of the user.
func (h *UserHandler) RevokeAllRoles(c *gin.Context) {
	revoked, err := h.assignments.RevokeAllRoles(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, assignmentCases, http.StatusInternalServerError, "failed to revoke roles")
		return
	}
	c.JSON(http.StatusOK, RevokeAllRolesResponse{Revoked: revoked})
}

// ListRoles returns the user's role assignments in assignment order.
func (h *UserHandler) ListRoles(c *gin.Context) {
	assignments, err := h.assignments.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithMappedError(c, err, assignmentCases, http.StatusInternalServerError, "failed to list roles")
		return
	}
	c.JSON(http.StatusOK, newRoleAssignmentPayloads(assignments))
}

func assignmentOutcome(result usecase.RoleAssignmentResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case result.Changed:
		return "changed"
	default:
		return "noop"
	}
}

// AssignCategories replaces the user's current categories from effective_from (default today).
func (h *UserHandler) AssignCategories(c *gin.Context) {
	var req AssignCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid category assignment payload"))
		return
	}

	cmd := usecase.AssignCategoriesCommand{CategoryIDs: req.CategoryIDs}
	if req.EffectiveFrom != "" {
		from, err := time.Parse(dateLayout, req.EffectiveFrom)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "effective_from must be YYYY-MM-DD"))
			return
		}
		cmd.EffectiveFrom = from
	}

	if _, err := h.categories.AssignCategories(c.Request.Context(), c.Param("id"), cmd); err != nil {
		RespondWithMappedError(c, err, categoryCases, http.StatusInternalServerError, "failed to assign categories")
		return
	}

	h.respondActiveCategories(c, http.StatusOK)
}

// ListCategories returns the categories active today.
func (h *UserHandler) ListCategories(c *gin.Context) {
	h.respondActiveCategories(c, http.StatusOK)
}

// ExpireCategory ends a category assignment on the until query date (default today).
func (h *UserHandler) ExpireCategory(c *gin.Context) {
	until := h.now()
	if raw := c.Query("until"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "until must be YYYY-MM-DD"))
			return
		}
		until = parsed
	}

	if err := h.categories.ExpireCategory(c.Request.Context(), c.Param("id"), c.Param("categoryId"), until); err != nil {
		RespondWithMappedError(c, err, categoryCases, http.StatusInternalServerError, "failed to expire category")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) respondActiveCategories(c *gin.Context, status int) {
	userID := c.Param("id")
	active, err := h.categories.ActiveCategories(c.Request.Context(), userID, h.now())
	if err != nil {
		RespondWithMappedError(c, err, categoryCases, http.StatusInternalServerError, "failed to load categories")
		return
	}

	resp := CategoryAssignmentsResponse{
		UserID:      userID,
		Assignments: make([]CategoryAssignmentPayload, 0, len(active)),
	}
	for _, assignment := range active {
		resp.Assignments = append(resp.Assignments, newCategoryAssignmentPayload(assignment))
	}
	c.JSON(status, resp)
}
