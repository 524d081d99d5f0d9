package port

import (
	"context"
	"time"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// PasswordHasher produces self-describing password hashes. Verify reads the
// cost parameters from encoded, so hashes survive configuration changes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// PasswordPolicyValidator rejects passwords that are too short or too guessable.
type PasswordPolicyValidator interface {
	Validate(password string) error
}

// AccessToken is an issued bearer credential.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// SessionClaims are the verified contents of an access token.
type SessionClaims struct {
	UserID    domain.UserID
	ExpiresAt time.Time
}

// SessionManager issues and verifies access tokens.
type SessionManager interface {
	Issue(ctx context.Context, user domain.User) (AccessToken, error)
	Parse(ctx context.Context, token string) (SessionClaims, error)
}
