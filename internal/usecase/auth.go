package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/infra/logger"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

// ErrInvalidCredentials indicates the provided email or password are incorrect.
var ErrInvalidCredentials = errors.New("invalid credentials")

// LoginCommand captures the login payload.
type LoginCommand struct {
	Email    string
	Password string
}

// LoginResult carries the authenticated user and the issued access token.
type LoginResult struct {
	User  domain.User
	Token port.AccessToken
}

// rehasher is implemented by hashers that can tell when a stored hash uses outdated cost parameters.
type rehasher interface {
	NeedsRehash(encoded string) bool
}

// AuthService coordinates authentication flows.
type AuthService struct {
	users    port.UserRepository
	hasher   port.PasswordHasher
	sessions port.SessionManager
	logger   *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users port.UserRepository, hasher port.PasswordHasher, sessions port.SessionManager, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{users: users, hasher: hasher, sessions: sessions, logger: log}
}

// Login validates credentials and issues an access token. Only active users may sign in.
func (s *AuthService) Login(ctx context.Context, cmd LoginCommand) (LoginResult, error) {
	email := strings.TrimSpace(cmd.Email)
	if email == "" || cmd.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	hash, err := s.users.PasswordHash(ctx, user.ID())
	if err != nil {
		return LoginResult{}, fmt.Errorf("load password hash: %w", err)
	}
	ok, err := s.hasher.Verify(cmd.Password, hash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		logger.FromContext(ctx, s.logger).Info("login rejected", zap.String("email", logger.MaskEmail(email)))
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return LoginResult{}, fmt.Errorf("%w: user %s is %s", ErrInactiveUser, user.ID(), user.Status())
	}

	s.upgradeHash(ctx, *user, hash, cmd.Password)

	token, err := s.sessions.Issue(ctx, *user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}

	return LoginResult{User: *user, Token: token}, nil
}

// upgradeHash re-stores the password with the current cost parameters. Failures only log.
func (s *AuthService) upgradeHash(ctx context.Context, user domain.User, hash, password string) {
	r, ok := s.hasher.(rehasher)
	if !ok || !r.NeedsRehash(hash) {
		return
	}
	if _, err := s.users.Update(ctx, user, &password); err != nil {
		logger.FromContext(ctx, s.logger).Warn("password rehash failed", zap.String("user_id", user.ID().String()), zap.Error(err))
	}
}

// Authenticate verifies an access token and returns the caller it identifies.
// Tokens of deleted or no longer active users are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (CurrentUser, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return CurrentUser{}, ErrNotAuthenticated
	}
	claims, err := s.sessions.Parse(ctx, token)
	if err != nil {
		return CurrentUser{}, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return CurrentUser{}, fmt.Errorf("%w: user %s no longer exists", ErrNotAuthenticated, claims.UserID)
		}
		return CurrentUser{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive() {
		return CurrentUser{}, fmt.Errorf("%w: %w: user %s is %s", ErrNotAuthenticated, ErrInactiveUser, user.ID(), user.Status())
	}
	return CurrentUser{UserID: claims.UserID}, nil
}
