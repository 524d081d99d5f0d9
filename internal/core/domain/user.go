package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
)

const maxUserNameLength = 255

var validate = validator.New()

// ParseAccountStatus validates a raw status string.
func ParseAccountStatus(raw string) (AccountStatus, error) {
	status := AccountStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case AccountStatusActive, AccountStatusInactive, AccountStatusSuspended:
		return status, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// User is the account aggregate. It is immutable; every state change returns a new User.
type User struct {
	id              UserID
	name            string
	email           string
	status          AccountStatus
	emailVerifiedAt *time.Time
	categoryIDs     CategoryIDs
	roleIDs         RoleIDs
}

// UserSnapshot carries persisted user state used to reconstitute the aggregate.
type UserSnapshot struct {
	ID              UserID
	Name            string
	Email           string
	Status          AccountStatus
	EmailVerifiedAt *time.Time
	CategoryIDs     CategoryIDs
	RoleIDs         RoleIDs
}

// NewUser registers a brand new, active user with a generated id.
func NewUser(name, email string) (User, error) {
	return ReconstituteUser(UserSnapshot{
		ID:     NewUserID(),
		Name:   name,
		Email:  email,
		Status: AccountStatusActive,
	})
}

// ReconstituteUser rebuilds a user from storage, enforcing the same invariants as NewUser.
func ReconstituteUser(s UserSnapshot) (User, error) {
	if s.ID.IsZero() {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidIdentifier)
	}
	name, err := normalizeUserName(s.Name)
	if err != nil {
		return User{}, err
	}
	email, err := normalizeEmail(s.Email)
	if err != nil {
		return User{}, err
	}
	if _, err := ParseAccountStatus(string(s.Status)); err != nil {
		return User{}, err
	}

	return User{
		id:              s.ID,
		name:            name,
		email:           email,
		status:          s.Status,
		emailVerifiedAt: copyTime(s.EmailVerifiedAt),
		categoryIDs:     s.CategoryIDs,
		roleIDs:         s.RoleIDs,
	}, nil
}

func normalizeUserName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: user name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxUserNameLength {
		return "", fmt.Errorf("%w: user name exceeds %d characters", ErrInvalidName, maxUserNameLength)
	}
	return name, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if err := validate.Var(email, "required,email,max=255"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return email, nil
}

// NormalizeEmail validates and trims an email address the same way the User aggregate does.
func NormalizeEmail(raw string) (string, error) {
	return normalizeEmail(raw)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (u User) ID() UserID                  { return u.id }
func (u User) Name() string                { return u.name }
func (u User) Email() string               { return u.email }
func (u User) Status() AccountStatus       { return u.status }
func (u User) EmailVerifiedAt() *time.Time { return copyTime(u.emailVerifiedAt) }
func (u User) CategoryIDs() CategoryIDs    { return u.categoryIDs }
func (u User) RoleIDs() RoleIDs            { return u.roleIDs }

// IsActive reports whether the account may receive new role assignments and log in.
func (u User) IsActive() bool { return u.status == AccountStatusActive }

// HasRole reports whether roleID is already assigned.
func (u User) HasRole(roleID RoleID) bool { return u.roleIDs.Contains(roleID) }

// Snapshot exports the aggregate state for persistence.
func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:              u.id,
		Name:            u.name,
		Email:           u.email,
		Status:          u.status,
		EmailVerifiedAt: copyTime(u.emailVerifiedAt),
		CategoryIDs:     u.categoryIDs,
		RoleIDs:         u.roleIDs,
	}
}

// Activate returns an active copy of the user.
func (u User) Activate() User { return u.withStatus(AccountStatusActive) }

// Deactivate returns an inactive copy of the user.
func (u User) Deactivate() User { return u.withStatus(AccountStatusInactive) }

// Suspend returns a suspended copy of the user.
func (u User) Suspend() User { return u.withStatus(AccountStatusSuspended) }

// WithStatus returns a copy with the given status.
func (u User) WithStatus(status AccountStatus) (User, error) {
	if _, err := ParseAccountStatus(string(status)); err != nil {
		return u, err
	}
	return u.withStatus(status), nil
}

func (u User) withStatus(status AccountStatus) User {
	next := u
	next.status = status
	return next
}

// ChangeName returns a copy with a new display name.
func (u User) ChangeName(name string) (User, error) {
	normalized, err := normalizeUserName(name)
	if err != nil {
		return u, err
	}
	next := u
	next.name = normalized
	return next, nil
}

// ChangeEmail returns a copy with a new email. Verification is reset when the address changes.
func (u User) ChangeEmail(email string) (User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return u, err
	}
	next := u
	if !strings.EqualFold(normalized, u.email) {
		next.emailVerifiedAt = nil
	}
	next.email = normalized
	return next, nil
}

// MarkEmailVerified returns a copy stamped as verified at the given time.
func (u User) MarkEmailVerified(at time.Time) User {
	next := u
	verified := at.UTC()
	next.emailVerifiedAt = &verified
	return next
}

// AssignCategory returns a copy with the category appended. The first category stays primary.
func (u User) AssignCategory(categoryID UserCategoryID) (User, error) {
	ids, err := u.categoryIDs.Including(categoryID.String())
	if err != nil {
		return u, err
	}
	next := u
	next.categoryIDs = ids
	return next, nil
}

// AssignRole returns a copy with the role appended.
func (u User) AssignRole(roleID RoleID) (User, error) {
	ids, err := u.roleIDs.Including(roleID.String())
	if err != nil {
		return u, err
	}
	next := u
	next.roleIDs = ids
	return next, nil
}
