package domain

import (
	"fmt"
	"strings"
)

// Role groups permissions under a system key.
type Role struct {
	id            RoleID
	name          string
	displayName   string
	permissionIDs PermissionIDs
}

// NewRole creates a role with a generated id.
func NewRole(name, displayName string, permissionIDs PermissionIDs) (Role, error) {
	return ReconstituteRole(NewRoleID(), name, displayName, permissionIDs)
}

// ReconstituteRole rebuilds a stored role.
func ReconstituteRole(id RoleID, name, displayName string, permissionIDs PermissionIDs) (Role, error) {
	if id.IsZero() {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidIdentifier)
	}
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidName)
	}
	trimmedDisplay := strings.TrimSpace(displayName)
	if trimmedDisplay == "" {
		return Role{}, fmt.Errorf("%w: role display name is required", ErrInvalidName)
	}
	return Role{
		id:            id,
		name:          trimmedName,
		displayName:   trimmedDisplay,
		permissionIDs: permissionIDs,
	}, nil
}

func (r Role) ID() RoleID                   { return r.id }
func (r Role) Name() string                 { return r.name }
func (r Role) DisplayName() string          { return r.displayName }
func (r Role) PermissionIDs() PermissionIDs { return r.permissionIDs }

// ChangeDisplayName returns a copy with a new display name.
func (r Role) ChangeDisplayName(displayName string) (Role, error) {
	trimmed := strings.TrimSpace(displayName)
	if trimmed == "" {
		return r, fmt.Errorf("%w: role display name is required", ErrInvalidName)
	}
	next := r
	next.displayName = trimmed
	return next, nil
}

// GrantPermissions returns a copy with the permissions appended.
func (r Role) GrantPermissions(ids ...PermissionID) (Role, error) {
	granted, err := r.permissionIDs.With(ids...)
	if err != nil {
		return r, err
	}
	next := r
	next.permissionIDs = PermissionIDs{granted}
	return next, nil
}
