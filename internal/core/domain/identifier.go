package domain

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Identifier is the constraint shared by all typed aggregate identifiers.
type Identifier interface {
	comparable
	String() string
	IsZero() bool
}

// ulidValue holds a canonical 26 character ULID string.
type ulidValue struct {
	value string
}

func newULIDValue() ulidValue {
	return ulidValue{value: ulid.Make().String()}
}

// parseULIDValue accepts only the canonical upper-case Crockford form.
func parseULIDValue(kind, raw string) (ulidValue, error) {
	if len(raw) != ulid.EncodedSize {
		return ulidValue{}, fmt.Errorf("%w: %s id %q must be %d characters", ErrInvalidIdentifier, kind, raw, ulid.EncodedSize)
	}

	parsed, err := ulid.ParseStrict(raw)
	if err != nil {
		return ulidValue{}, fmt.Errorf("%w: %s id %q: %v", ErrInvalidIdentifier, kind, raw, err)
	}

	if parsed.String() != raw {
		return ulidValue{}, fmt.Errorf("%w: %s id %q is not in canonical form", ErrInvalidIdentifier, kind, raw)
	}

	return ulidValue{value: raw}, nil
}

// String returns the canonical ULID string.
func (v ulidValue) String() string {
	return v.value
}

// IsZero reports whether the identifier was never set.
func (v ulidValue) IsZero() bool {
	return v.value == ""
}

// UserID identifies a User aggregate.
type UserID struct{ ulidValue }

// NewUserID generates a fresh UserID.
func NewUserID() UserID { return UserID{newULIDValue()} }

// ParseUserID validates raw and returns the matching UserID.
func ParseUserID(raw string) (UserID, error) {
	v, err := parseULIDValue("user", raw)
	return UserID{v}, err
}

// Equals compares two user ids by value.
func (id UserID) Equals(other UserID) bool { return id == other }

// RoleID identifies a Role aggregate.
type RoleID struct{ ulidValue }

// NewRoleID generates a fresh RoleID.
func NewRoleID() RoleID { return RoleID{newULIDValue()} }

// ParseRoleID validates raw and returns the matching RoleID.
func ParseRoleID(raw string) (RoleID, error) {
	v, err := parseULIDValue("role", raw)
	return RoleID{v}, err
}

// Equals compares two role ids by value.
func (id RoleID) Equals(other RoleID) bool { return id == other }

// PermissionID identifies a Permission aggregate.
type PermissionID struct{ ulidValue }

// NewPermissionID generates a fresh PermissionID.
func NewPermissionID() PermissionID { return PermissionID{newULIDValue()} }

// ParsePermissionID validates raw and returns the matching PermissionID.
func ParsePermissionID(raw string) (PermissionID, error) {
	v, err := parseULIDValue("permission", raw)
	return PermissionID{v}, err
}

// Equals compares two permission ids by value.
func (id PermissionID) Equals(other PermissionID) bool { return id == other }

// UserCategoryID identifies a UserCategory aggregate.
type UserCategoryID struct{ ulidValue }

// NewUserCategoryID generates a fresh UserCategoryID.
func NewUserCategoryID() UserCategoryID { return UserCategoryID{newULIDValue()} }

// ParseUserCategoryID validates raw and returns the matching UserCategoryID.
func ParseUserCategoryID(raw string) (UserCategoryID, error) {
	v, err := parseULIDValue("category", raw)
	return UserCategoryID{v}, err
}

// Equals compares two category ids by value.
func (id UserCategoryID) Equals(other UserCategoryID) bool { return id == other }
