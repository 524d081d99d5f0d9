package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: c.GetString("trace_id"),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// UserPayload is the public view of a user.
type UserPayload struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Status            string   `json:"status"`
	RoleIDs           []string `json:"role_ids"`
	CategoryIDs       []string `json:"category_ids"`
	PrimaryCategoryID *string  `json:"primary_category_id,omitempty"`
}

func newUserPayload(user domain.User) UserPayload {
	payload := UserPayload{
		ID:          user.ID().String(),
		Name:        user.Name(),
		Email:       user.Email(),
		Status:      string(user.Status()),
		RoleIDs:     user.RoleIDs().Strings(),
		CategoryIDs: user.CategoryIDs().Strings(),
	}
	if primary, err := user.CategoryIDs().PrimaryID(); err == nil {
		id := primary.String()
		payload.PrimaryCategoryID = &id
	}
	return payload
}

// PermissionPayload is the public view of a permission.
type PermissionPayload struct {
	ID          string  `json:"id"`
	Key         string  `json:"key"`
	Resource    string  `json:"resource"`
	Action      string  `json:"action"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

func newPermissionPayload(p domain.Permission) PermissionPayload {
	return PermissionPayload{
		ID:          p.ID().String(),
		Key:         p.Key().String(),
		Resource:    p.Resource(),
		Action:      p.Action(),
		Name:        p.Name(),
		Description: p.Description(),
	}
}

func newPermissionPayloads(permissions []domain.Permission) []PermissionPayload {
	out := make([]PermissionPayload, 0, len(permissions))
	for _, p := range permissions {
		out = append(out, newPermissionPayload(p))
	}
	return out
}

// RolePayload is the public view of a role.
type RolePayload struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	DisplayName   string   `json:"display_name"`
	PermissionIDs []string `json:"permission_ids"`
}

func newRolePayload(r domain.Role) RolePayload {
	return RolePayload{
		ID:            r.ID().String(),
		Name:          r.Name(),
		DisplayName:   r.DisplayName(),
		PermissionIDs: r.PermissionIDs().Strings(),
	}
}

// CategoryPayload is the public view of a user category.
type CategoryPayload struct {
	ID            string   `json:"id"`
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Description   *string  `json:"description,omitempty"`
	IsActive      bool     `json:"is_active"`
	PermissionIDs []string `json:"permission_ids"`
}

func newCategoryPayload(c domain.UserCategory) CategoryPayload {
	return CategoryPayload{
		ID:            c.ID().String(),
		Code:          c.Code(),
		Name:          c.Name(),
		Description:   c.Description(),
		IsActive:      c.IsActive(),
		PermissionIDs: c.PermissionIDs().Strings(),
	}
}

// CategoryAssignmentPayload is one effective-dated category assignment.
type CategoryAssignmentPayload struct {
	CategoryID     string  `json:"category_id"`
	IsPrimary      bool    `json:"is_primary"`
	EffectiveFrom  string  `json:"effective_from"`
	EffectiveUntil *string `json:"effective_until,omitempty"`
}

func newCategoryAssignmentPayload(a domain.CategoryAssignment) CategoryAssignmentPayload {
	payload := CategoryAssignmentPayload{
		CategoryID:    a.CategoryID.String(),
		IsPrimary:     a.IsPrimary,
		EffectiveFrom: a.EffectiveFrom.Format(dateLayout),
	}
	if a.EffectiveUntil != nil {
		until := a.EffectiveUntil.Format(dateLayout)
		payload.EffectiveUntil = &until
	}
	return payload
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        UserPayload `json:"user"`
}

// DashboardResponse is the signed-in user's dashboard.
type DashboardResponse struct {
	User            UserPayload         `json:"user"`
	Roles           []RolePayload       `json:"roles"`
	Categories      []CategoryPayload   `json:"categories"`
	PrimaryCategory *CategoryPayload    `json:"primary_category,omitempty"`
	Permissions     []PermissionPayload `json:"permissions"`
}

// AssignRoleRequest names the role to grant.
type AssignRoleRequest struct {
	RoleID string `json:"role_id" binding:"required"`
}

// AssignRolesRequest names several roles to grant.
type AssignRolesRequest struct {
	RoleIDs []string `json:"role_ids" binding:"required"`
}

// RoleAssignmentResponse reports an assign or revoke outcome.
type RoleAssignmentResponse struct {
	UserID  string `json:"user_id"`
	RoleID  string `json:"role_id"`
	Changed bool   `json:"changed"`
}

// RoleAssignmentPayload is one role held by a user.
type RoleAssignmentPayload struct {
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
	AssignedBy *string   `json:"assigned_by,omitempty"`
}

func newRoleAssignmentPayloads(assignments []domain.RoleAssignment) []RoleAssignmentPayload {
	out := make([]RoleAssignmentPayload, 0, len(assignments))
	for _, a := range assignments {
		payload := RoleAssignmentPayload{RoleID: a.RoleID.String(), AssignedAt: a.AssignedAt}
		if a.AssignedBy != nil {
			by := a.AssignedBy.String()
			payload.AssignedBy = &by
		}
		out = append(out, payload)
	}
	return out
}

// RevokeAllRolesResponse reports how many roles were removed.
type RevokeAllRolesResponse struct {
	Revoked int `json:"revoked"`
}

// AssignCategoriesRequest replaces the user's current categories.
// The first id becomes the primary category.
type AssignCategoriesRequest struct {
	CategoryIDs   []string `json:"category_ids" binding:"required"`
	EffectiveFrom string   `json:"effective_from"`
}

// CategoryAssignmentsResponse lists the active categories of a user.
type CategoryAssignmentsResponse struct {
	UserID      string                      `json:"user_id"`
	Assignments []CategoryAssignmentPayload `json:"assignments"`
}

// ChangeStatusRequest sets a user's account status.
type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ChangeProfileRequest updates any subset of a user's profile.
type ChangeProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// RoleCreateRequest defines a new role.
type RoleCreateRequest struct {
	Name           string   `json:"name" binding:"required"`
	DisplayName    string   `json:"display_name" binding:"required"`
	PermissionKeys []string `json:"permission_keys"`
}

// RoleRenameRequest changes a role's display name.
type RoleRenameRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

// PermissionCreateRequest defines a new permission.
type PermissionCreateRequest struct {
	Key         string  `json:"key" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

// CategoryCreateRequest defines a new user category.
type CategoryCreateRequest struct {
	Code          string   `json:"code" binding:"required"`
	Name          string   `json:"name" binding:"required"`
	Description   *string  `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

// HealthResponse conveys service liveness and readiness.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Checks    map[string]string `json:"checks,omitempty"`
}

const dateLayout = "2006-01-02"
