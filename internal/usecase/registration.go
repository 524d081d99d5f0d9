package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/infra/logger"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

var (
	// ErrDuplicateEmail indicates another account already uses the email address.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
)

// CreateUserCommand captures the registration payload.
type CreateUserCommand struct {
	Name     string
	Email    string
	Password string
}

// RegistrationService handles new account onboarding.
type RegistrationService struct {
	users             port.UserRepository
	passwordValidator port.PasswordPolicyValidator
	events            port.EventPublisher
	logger            *zap.Logger
	now               func() time.Time
}

// NewRegistrationService constructs a registration service. events may be nil.
func NewRegistrationService(users port.UserRepository, validator port.PasswordPolicyValidator, events port.EventPublisher, log *zap.Logger) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		users:             users,
		passwordValidator: validator,
		events:            events,
		logger:            log,
		now:               time.Now,
	}
}

// Register creates an active account. Nothing is written when the email is already taken.
func (s *RegistrationService) Register(ctx context.Context, cmd CreateUserCommand) (domain.User, error) {
	if strings.TrimSpace(cmd.Password) == "" {
		return domain.User{}, fmt.Errorf("%w: password is required", ErrPasswordPolicyViolation)
	}
	if s.passwordValidator != nil {
		if err := s.passwordValidator.Validate(cmd.Password); err != nil {
			return domain.User{}, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
		}
	}

	email, err := domain.NormalizeEmail(cmd.Email)
	if err != nil {
		return domain.User{}, err
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrDuplicateEmail
	}

	user, err := domain.NewUser(cmd.Name, email)
	if err != nil {
		return domain.User{}, err
	}

	stored, err := s.users.Add(ctx, user, cmd.Password)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("store user: %w", err)
	}

	logger.FromContext(ctx, s.logger).Info("user registered",
		zap.String("user_id", stored.ID().String()),
		zap.String("email", logger.MaskEmail(stored.Email())),
	)
	s.publishRegistered(ctx, stored)

	return stored, nil
}

func (s *RegistrationService) publishRegistered(ctx context.Context, user domain.User) {
	if s.events == nil {
		return
	}
	event := domain.NewUserRegisteredEvent(user, s.now())
	if err := s.events.PublishUserRegistered(ctx, event); err != nil {
		logger.FromContext(ctx, s.logger).Warn("publish user registered event failed", zap.String("user_id", user.ID().String()), zap.Error(err))
	}
}
