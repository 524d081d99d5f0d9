package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

// ErrUserNotFound indicates the referenced user does not exist.
var ErrUserNotFound = errors.New("user not found")

// ChangeProfileCommand carries optional profile updates. Nil fields are left unchanged.
type ChangeProfileCommand struct {
	Name     *string
	Email    *string
	Password *string
}

// AssignRolesCommand grants several roles in one call.
type AssignRolesCommand struct {
	RoleIDs []string
	// AssignedByUserID is empty for system assignments.
	AssignedByUserID string
}

// UserService handles user lifecycle operations.
type UserService struct {
	users             port.UserRepository
	roles             port.RoleRepository
	tx                port.TxManager
	cache             port.PermissionCache
	passwordValidator port.PasswordPolicyValidator
	logger            *zap.Logger
}

// NewUserService constructs UserService.
func NewUserService(users port.UserRepository, roles port.RoleRepository, tx port.TxManager, cache port.PermissionCache, validator port.PasswordPolicyValidator, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:             users,
		roles:             roles,
		tx:                tx,
		cache:             cache,
		passwordValidator: validator,
		logger:            logger,
	}
}

// GetUser loads a user by id.
func (s *UserService) GetUser(ctx context.Context, rawUserID string) (domain.User, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return domain.User{}, err
	}
	return loadUser(ctx, s.users, userID)
}

// ChangeStatus activates, deactivates or suspends a user.
func (s *UserService) ChangeStatus(ctx context.Context, rawUserID, rawStatus string) (domain.User, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return domain.User{}, err
	}
	status, err := domain.ParseAccountStatus(rawStatus)
	if err != nil {
		return domain.User{}, err
	}

	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return domain.User{}, err
	}
	if user.Status() == status {
		return user, nil
	}

	changed, err := user.WithStatus(status)
	if err != nil {
		return domain.User{}, err
	}
	stored, err := s.users.Update(ctx, changed, nil)
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	invalidatePermissions(ctx, s.cache, s.logger, userID)

	s.logger.Info("user status changed",
		zap.String("user_id", userID.String()),
		zap.String("from", string(user.Status())),
		zap.String("to", string(status)),
	)
	return stored, nil
}

// ChangeProfile updates name, email or password through the aggregate mutators.
func (s *UserService) ChangeProfile(ctx context.Context, rawUserID string, cmd ChangeProfileCommand) (domain.User, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return domain.User{}, err
	}
	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return domain.User{}, err
	}

	if cmd.Name != nil {
		if user, err = user.ChangeName(*cmd.Name); err != nil {
			return domain.User{}, err
		}
	}
	if cmd.Email != nil && !strings.EqualFold(strings.TrimSpace(*cmd.Email), user.Email()) {
		if user, err = user.ChangeEmail(*cmd.Email); err != nil {
			return domain.User{}, err
		}
		exists, err := s.users.ExistsByEmail(ctx, user.Email())
		if err != nil {
			return domain.User{}, fmt.Errorf("check email: %w", err)
		}
		if exists {
			return domain.User{}, ErrDuplicateEmail
		}
	}
	if cmd.Password != nil && s.passwordValidator != nil {
		if err := s.passwordValidator.Validate(*cmd.Password); err != nil {
			return domain.User{}, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
		}
	}

	stored, err := s.users.Update(ctx, user, cmd.Password)
	if err != nil {
		return domain.User{}, mapUserWriteError(err)
	}
	return stored, nil
}

// AssignRoles grants several roles at once. Roles the user already holds are skipped.
func (s *UserService) AssignRoles(ctx context.Context, rawUserID string, cmd AssignRolesCommand) error {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return err
	}
	roleIDs, err := domain.RoleIDsFromStrings(cmd.RoleIDs)
	if err != nil {
		return err
	}
	var assignedBy *domain.UserID
	if cmd.AssignedByUserID != "" {
		by, err := domain.ParseUserID(cmd.AssignedByUserID)
		if err != nil {
			return err
		}
		assignedBy = &by
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := loadUser(ctx, s.users, userID)
		if err != nil {
			return err
		}
		if !user.IsActive() {
			return fmt.Errorf("%w: user %s is %s", ErrInactiveUser, user.ID(), user.Status())
		}
		for _, roleID := range roleIDs.All() {
			exists, err := s.roles.ExistsByID(ctx, roleID)
			if err != nil {
				return fmt.Errorf("check role: %w", err)
			}
			if !exists {
				return fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
			}
		}
		return s.users.AssignRoles(ctx, userID, roleIDs, assignedBy)
	})
	if err != nil {
		return err
	}

	invalidatePermissions(ctx, s.cache, s.logger, userID)
	return nil
}

// DeleteUser removes the account and its assignments.
func (s *UserService) DeleteUser(ctx context.Context, rawUserID string) error {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return err
	}
	user, err := loadUser(ctx, s.users, userID)
	if err != nil {
		return err
	}
	removed, err := s.users.Delete(ctx, user)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	invalidatePermissions(ctx, s.cache, s.logger, userID)
	return nil
}

func mapUserWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrConflict):
		return ErrDuplicateEmail
	case errors.Is(err, repository.ErrNotFound):
		return ErrUserNotFound
	default:
		return fmt.Errorf("store user: %w", err)
	}
}
