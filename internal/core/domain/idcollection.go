package domain

import "fmt"

// DuplicatePolicy controls how an IDCollection reacts to repeated identifiers.
type DuplicatePolicy int

const (
	// StrictNoDuplicates rejects any repeated identifier.
	StrictNoDuplicates DuplicatePolicy = iota
	// UniqueSilent drops later repeats and keeps the first occurrence.
	UniqueSilent
	// AllowDuplicates keeps every identifier as given.
	AllowDuplicates
)

// String returns the policy name.
func (p DuplicatePolicy) String() string {
	switch p {
	case StrictNoDuplicates:
		return "strict_no_duplicates"
	case UniqueSilent:
		return "unique_silent"
	case AllowDuplicates:
		return "allow_duplicates"
	default:
		return fmt.Sprintf("duplicate_policy(%d)", int(p))
	}
}

// IDCollection is an insertion ordered set of identifiers of a single type.
// Values are immutable: every operation that adds identifiers returns a new collection.
type IDCollection[T Identifier] struct {
	policy DuplicatePolicy
	items  []T
}

// NewIDCollection builds a collection applying policy to ids in order.
func NewIDCollection[T Identifier](policy DuplicatePolicy, ids ...T) (IDCollection[T], error) {
	items, err := applyPolicy(policy, nil, ids)
	if err != nil {
		return IDCollection[T]{}, err
	}
	return IDCollection[T]{policy: policy, items: items}, nil
}

// ParseIDCollection parses raw strings with parse and builds a collection applying policy.
func ParseIDCollection[T Identifier](policy DuplicatePolicy, parse func(string) (T, error), raw []string) (IDCollection[T], error) {
	ids, err := parseAll(parse, raw)
	if err != nil {
		return IDCollection[T]{}, err
	}
	return NewIDCollection(policy, ids...)
}

func parseAll[T Identifier](parse func(string) (T, error), raw []string) ([]T, error) {
	ids := make([]T, 0, len(raw))
	for _, value := range raw {
		id, err := parse(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func applyPolicy[T Identifier](policy DuplicatePolicy, existing []T, added []T) ([]T, error) {
	items := make([]T, 0, len(existing)+len(added))
	items = append(items, existing...)

	if policy == AllowDuplicates {
		return append(items, added...), nil
	}

	seen := make(map[T]struct{}, len(items)+len(added))
	for _, id := range items {
		seen[id] = struct{}{}
	}

	for _, id := range added {
		if _, dup := seen[id]; dup {
			if policy == StrictNoDuplicates {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateIdentifier, id.String())
			}
			continue
		}
		seen[id] = struct{}{}
		items = append(items, id)
	}

	return items, nil
}

// Policy returns the duplicate policy the collection was built with.
func (c IDCollection[T]) Policy() DuplicatePolicy { return c.policy }

// IsEmpty reports whether the collection holds no identifiers.
func (c IDCollection[T]) IsEmpty() bool { return len(c.items) == 0 }

// Count returns the number of identifiers.
func (c IDCollection[T]) Count() int { return len(c.items) }

// All returns a copy of the identifiers in insertion order.
func (c IDCollection[T]) All() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Strings returns the canonical string form of every identifier in order.
func (c IDCollection[T]) Strings() []string {
	out := make([]string, len(c.items))
	for i, id := range c.items {
		out[i] = id.String()
	}
	return out
}

// Contains reports whether id is present.
func (c IDCollection[T]) Contains(id T) bool {
	for _, item := range c.items {
		if item == id {
			return true
		}
	}
	return false
}

// First returns the first identifier in insertion order.
func (c IDCollection[T]) First() (T, bool) {
	var zero T
	if len(c.items) == 0 {
		return zero, false
	}
	return c.items[0], true
}

// With returns a new collection holding the union of c and ids.
// Identifiers already present in c are skipped unless the policy allows duplicates;
// repeats inside ids are handled by the collection policy.
func (c IDCollection[T]) With(ids ...T) (IDCollection[T], error) {
	if len(ids) == 0 {
		return c, nil
	}

	added := ids
	if c.policy != AllowDuplicates {
		added = make([]T, 0, len(ids))
		for _, id := range ids {
			if !c.Contains(id) {
				added = append(added, id)
			}
		}
	}

	items, err := applyPolicy(c.policy, c.items, added)
	if err != nil {
		return c, err
	}
	return IDCollection[T]{policy: c.policy, items: items}, nil
}

// Equal reports whether both collections hold the same identifiers in the same order.
func (c IDCollection[T]) Equal(other IDCollection[T]) bool {
	if len(c.items) != len(other.items) {
		return false
	}
	for i := range c.items {
		if c.items[i] != other.items[i] {
			return false
		}
	}
	return true
}

// CategoryIDs is the strict, ordered set of categories assigned to a user.
// The first element is the user's primary category.
type CategoryIDs struct {
	IDCollection[UserCategoryID]
}

// NewCategoryIDs builds a strict category set.
func NewCategoryIDs(ids ...UserCategoryID) (CategoryIDs, error) {
	c, err := NewIDCollection(StrictNoDuplicates, ids...)
	return CategoryIDs{c}, err
}

// CategoryIDsFromStrings parses raw category ids preserving order.
func CategoryIDsFromStrings(raw []string) (CategoryIDs, error) {
	c, err := ParseIDCollection(StrictNoDuplicates, ParseUserCategoryID, raw)
	return CategoryIDs{c}, err
}

// Including returns a new set with the parsed raw ids appended.
func (c CategoryIDs) Including(raw ...string) (CategoryIDs, error) {
	ids, err := parseAll(ParseUserCategoryID, raw)
	if err != nil {
		return c, err
	}
	next, err := c.With(ids...)
	return CategoryIDs{next}, err
}

// PrimaryID returns the first category in insertion order.
func (c CategoryIDs) PrimaryID() (UserCategoryID, error) {
	id, ok := c.First()
	if !ok {
		return UserCategoryID{}, ErrNoPrimaryCategory
	}
	return id, nil
}

// RoleIDs is the strict, ordered set of roles held by a user.
type RoleIDs struct {
	IDCollection[RoleID]
}

// NewRoleIDs builds a strict role set.
func NewRoleIDs(ids ...RoleID) (RoleIDs, error) {
	c, err := NewIDCollection(StrictNoDuplicates, ids...)
	return RoleIDs{c}, err
}

// RoleIDsFromStrings parses raw role ids preserving order.
func RoleIDsFromStrings(raw []string) (RoleIDs, error) {
	c, err := ParseIDCollection(StrictNoDuplicates, ParseRoleID, raw)
	return RoleIDs{c}, err
}

// Including returns a new set with the parsed raw ids appended.
func (c RoleIDs) Including(raw ...string) (RoleIDs, error) {
	ids, err := parseAll(ParseRoleID, raw)
	if err != nil {
		return c, err
	}
	next, err := c.With(ids...)
	return RoleIDs{next}, err
}

// PermissionIDs is the strict, ordered set of permissions granted by a role or category.
type PermissionIDs struct {
	IDCollection[PermissionID]
}

// NewPermissionIDs builds a strict permission set.
func NewPermissionIDs(ids ...PermissionID) (PermissionIDs, error) {
	c, err := NewIDCollection(StrictNoDuplicates, ids...)
	return PermissionIDs{c}, err
}

// PermissionIDsFromStrings parses raw permission ids preserving order.
func PermissionIDsFromStrings(raw []string) (PermissionIDs, error) {
	c, err := ParseIDCollection(StrictNoDuplicates, ParsePermissionID, raw)
	return PermissionIDs{c}, err
}

// Including returns a new set with the parsed raw ids appended.
func (c PermissionIDs) Including(raw ...string) (PermissionIDs, error) {
	ids, err := parseAll(ParsePermissionID, raw)
	if err != nil {
		return c, err
	}
	next, err := c.With(ids...)
	return PermissionIDs{next}, err
}
