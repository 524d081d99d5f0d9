package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxPermissionNameLength = 100

var permissionKeyPattern = regexp.MustCompile(`^[a-z]+(\.[a-z]+)*$`)

// PermissionKey is a lower-case, dot separated "resource.action" key.
type PermissionKey string

// ParsePermissionKey validates raw. Keys must contain at least one dot so they split into resource and action.
func ParsePermissionKey(raw string) (PermissionKey, error) {
	key := strings.TrimSpace(raw)
	if !permissionKeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q does not match resource.action", ErrInvalidPermissionKey, raw)
	}
	if !strings.Contains(key, ".") {
		return "", fmt.Errorf("%w: %q has no action segment", ErrInvalidPermissionKey, raw)
	}
	return PermissionKey(key), nil
}

// Split returns resource and action, splitting on the first dot only.
func (k PermissionKey) Split() (resource, action string) {
	parts := strings.SplitN(string(k), ".", 2)
	if len(parts) < 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// String returns the raw key.
func (k PermissionKey) String() string { return string(k) }

// Permission is a named capability on a resource.
type Permission struct {
	id          PermissionID
	key         PermissionKey
	resource    string
	action      string
	name        string
	description *string
}

// NewPermission creates a permission with a generated id.
func NewPermission(key, name string, description *string) (Permission, error) {
	return ReconstitutePermission(NewPermissionID(), key, name, description)
}

// ReconstitutePermission rebuilds a stored permission. Resource and action are always derived from key.
func ReconstitutePermission(id PermissionID, key, name string, description *string) (Permission, error) {
	if id.IsZero() {
		return Permission{}, fmt.Errorf("%w: permission id is required", ErrInvalidIdentifier)
	}
	parsedKey, err := ParsePermissionKey(key)
	if err != nil {
		return Permission{}, err
	}
	trimmedName := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmedName); n == 0 || n > maxPermissionNameLength {
		return Permission{}, fmt.Errorf("%w: permission name must be 1-%d characters", ErrInvalidName, maxPermissionNameLength)
	}

	resource, action := parsedKey.Split()
	return Permission{
		id:          id,
		key:         parsedKey,
		resource:    resource,
		action:      action,
		name:        trimmedName,
		description: optionalString(description),
	}, nil
}

func (p Permission) ID() PermissionID     { return p.id }
func (p Permission) Key() PermissionKey   { return p.key }
func (p Permission) Resource() string     { return p.resource }
func (p Permission) Action() string       { return p.action }
func (p Permission) Name() string         { return p.name }
func (p Permission) Description() *string { return optionalString(p.description) }

// optionalString trims s and maps blanks to nil.
func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// MergePermissions unions permission lists in order, keeping the first occurrence of each permission id.
// Permissions that share a key but not an id are kept apart.
func MergePermissions(sources ...[]Permission) []Permission {
	total := 0
	for _, src := range sources {
		total += len(src)
	}

	merged := make([]Permission, 0, total)
	seen := make(map[PermissionID]struct{}, total)
	for _, src := range sources {
		for _, permission := range src {
			if _, ok := seen[permission.id]; ok {
				continue
			}
			seen[permission.id] = struct{}{}
			merged = append(merged, permission)
		}
	}
	return merged
}
