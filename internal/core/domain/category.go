package domain

import (
	"fmt"
	"strings"
)

// UserCategory is a secondary grouping of users (job function, department) that can grant permissions.
type UserCategory struct {
	id            UserCategoryID
	code          string
	name          string
	description   *string
	isActive      bool
	permissionIDs PermissionIDs
}

// UserCategorySnapshot carries persisted category state.
type UserCategorySnapshot struct {
	ID            UserCategoryID
	Code          string
	Name          string
	Description   *string
	IsActive      bool
	PermissionIDs PermissionIDs
}

// NewUserCategory creates an active category with a generated id.
func NewUserCategory(code, name string, description *string, permissionIDs PermissionIDs) (UserCategory, error) {
	return ReconstituteUserCategory(UserCategorySnapshot{
		ID:            NewUserCategoryID(),
		Code:          code,
		Name:          name,
		Description:   description,
		IsActive:      true,
		PermissionIDs: permissionIDs,
	})
}

// ReconstituteUserCategory rebuilds a stored category.
func ReconstituteUserCategory(s UserCategorySnapshot) (UserCategory, error) {
	if s.ID.IsZero() {
		return UserCategory{}, fmt.Errorf("%w: category id is required", ErrInvalidIdentifier)
	}
	code := strings.TrimSpace(s.Code)
	if code == "" {
		return UserCategory{}, fmt.Errorf("%w: category code is required", ErrInvalidName)
	}
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return UserCategory{}, fmt.Errorf("%w: category name is required", ErrInvalidName)
	}
	return UserCategory{
		id:            s.ID,
		code:          code,
		name:          name,
		description:   optionalString(s.Description),
		isActive:      s.IsActive,
		permissionIDs: s.PermissionIDs,
	}, nil
}

func (c UserCategory) ID() UserCategoryID           { return c.id }
func (c UserCategory) Code() string                 { return c.code }
func (c UserCategory) Name() string                 { return c.name }
func (c UserCategory) Description() *string         { return optionalString(c.description) }
func (c UserCategory) IsActive() bool               { return c.isActive }
func (c UserCategory) PermissionIDs() PermissionIDs { return c.permissionIDs }

// Activate returns an active copy.
func (c UserCategory) Activate() UserCategory {
	next := c
	next.isActive = true
	return next
}

// Deactivate returns an inactive copy.
func (c UserCategory) Deactivate() UserCategory {
	next := c
	next.isActive = false
	return next
}

// ChangeName returns a copy with a new name.
func (c UserCategory) ChangeName(name string) (UserCategory, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return c, fmt.Errorf("%w: category name is required", ErrInvalidName)
	}
	next := c
	next.name = trimmed
	return next, nil
}
