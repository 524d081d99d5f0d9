package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
)

// ErrInvalidToken indicates a token failed signature, expiry or claim validation.
var ErrInvalidToken = errors.New("jwt: invalid token")

const (
	defaultAccessTokenTTL = time.Hour
	minSecretLength       = 16
)

// AccessTokenClaims carries the user id alongside the registered claims.
type AccessTokenClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 access tokens.
type SessionManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager validates the signing secret and returns a manager.
func NewSessionManager(secret, issuer string, ttl time.Duration) (*SessionManager, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", minSecretLength)
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	return &SessionManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue signs an access token for user.
func (m *SessionManager) Issue(_ context.Context, user domain.User) (port.AccessToken, error) {
	if user.ID().IsZero() {
		return port.AccessToken{}, fmt.Errorf("jwt: user id is required")
	}

	now := m.now().UTC()
	expiresAt := now.Add(m.ttl)
	claims := &AccessTokenClaims{
		UserID: user.ID().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID().String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return port.AccessToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return port.AccessToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Parse verifies the token and returns its claims.
func (m *SessionManager) Parse(_ context.Context, token string) (port.SessionClaims, error) {
	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return port.SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return port.SessionClaims{}, ErrInvalidToken
	}

	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil {
		return port.SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return port.SessionClaims{
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

var _ port.SessionManager = (*SessionManager)(nil)
