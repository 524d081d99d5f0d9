package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

var tracer = otel.Tracer("github.com/wasipo/harbor-sub000/internal/usecase")

var (
	// ErrInactiveUser indicates the user is not active and cannot receive new roles.
	ErrInactiveUser = errors.New("user is not active")
	// ErrRoleNotFound indicates the referenced role does not exist.
	ErrRoleNotFound = errors.New("role not found")
)

// AssignRoleCommand requests that a role be granted to a user.
type AssignRoleCommand struct {
	UserID string
	RoleID string
	// AssignedByUserID is empty for system assignments.
	AssignedByUserID string
}

// RevokeRoleCommand requests that a role be removed from a user.
type RevokeRoleCommand struct {
	UserID string
	RoleID string
}

// RoleAssignmentResult reports the outcome of an assign or revoke call.
// Changed is false for the idempotent no-op outcomes.
type RoleAssignmentResult struct {
	Assignment domain.RoleAssignment
	Changed    bool
}

// RoleAssignmentService grants and revokes roles.
type RoleAssignmentService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	assignments port.RoleAssignmentRepository
	tx          port.TxManager
	cache       port.PermissionCache
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleAssignmentService constructs a RoleAssignmentService. cache may be nil.
// State changes are persisted directly; no events are published.
func NewRoleAssignmentService(users port.UserRepository, roles port.RoleRepository, assignments port.RoleAssignmentRepository, tx port.TxManager, cache port.PermissionCache, logger *zap.Logger) *RoleAssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleAssignmentService{
		users:       users,
		roles:       roles,
		assignments: assignments,
		tx:          tx,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// AssignRole grants the role. Assigning a role the user already holds succeeds without writing.
func (s *RoleAssignmentService) AssignRole(ctx context.Context, cmd AssignRoleCommand) (result RoleAssignmentResult, err error) {
	ctx, span := tracer.Start(ctx, "RoleAssignmentService.AssignRole")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	userID, err := domain.ParseUserID(cmd.UserID)
	if err != nil {
		return result, err
	}
	roleID, err := domain.ParseRoleID(cmd.RoleID)
	if err != nil {
		return result, err
	}
	var assignedBy *domain.UserID
	if cmd.AssignedByUserID != "" {
		by, err := domain.ParseUserID(cmd.AssignedByUserID)
		if err != nil {
			return result, err
		}
		assignedBy = &by
	}
	span.SetAttributes(attribute.String("user.id", userID.String()), attribute.String("role.id", roleID.String()))

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := loadUser(ctx, s.users, userID)
		if err != nil {
			return err
		}
		role, err := loadRole(ctx, s.roles, roleID)
		if err != nil {
			return err
		}

		noop := RoleAssignmentResult{Assignment: domain.RoleAssignment{UserID: user.ID(), RoleID: role.ID()}}
		if user.HasRole(role.ID()) {
			result = noop
			return nil
		}
		if !user.IsActive() {
			return fmt.Errorf("%w: user %s is %s", ErrInactiveUser, user.ID(), user.Status())
		}

		assignment := domain.RoleAssignment{
			UserID:     user.ID(),
			RoleID:     role.ID(),
			AssignedAt: s.now().UTC(),
			AssignedBy: assignedBy,
		}
		if err := s.assignments.Insert(ctx, assignment); err != nil {
			// A concurrent assignment won the race; the pair exists either way.
			if errors.Is(err, repository.ErrConflict) {
				result = noop
				return nil
			}
			return fmt.Errorf("insert role assignment: %w", err)
		}
		result = RoleAssignmentResult{Assignment: assignment, Changed: true}
		return nil
	})
	if err != nil {
		return RoleAssignmentResult{}, err
	}

	if result.Changed {
		invalidatePermissions(ctx, s.cache, s.logger, userID)
		s.logger.Info("role assigned",
			zap.String("user_id", userID.String()),
			zap.String("role_id", roleID.String()),
			zap.Bool("system", result.Assignment.IsSystemAssigned()),
		)
	}
	return result, nil
}

// RevokeRole removes the role. Revoking a role the user does not hold succeeds without writing.
func (s *RoleAssignmentService) RevokeRole(ctx context.Context, cmd RevokeRoleCommand) (result RoleAssignmentResult, err error) {
	ctx, span := tracer.Start(ctx, "RoleAssignmentService.RevokeRole")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	userID, err := domain.ParseUserID(cmd.UserID)
	if err != nil {
		return result, err
	}
	roleID, err := domain.ParseRoleID(cmd.RoleID)
	if err != nil {
		return result, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := loadUser(ctx, s.users, userID)
		if err != nil {
			return err
		}
		role, err := loadRole(ctx, s.roles, roleID)
		if err != nil {
			return err
		}

		removed, err := s.assignments.Delete(ctx, user.ID(), role.ID())
		if err != nil {
			return fmt.Errorf("delete role assignment: %w", err)
		}
		result = RoleAssignmentResult{
			Assignment: domain.RoleAssignment{UserID: user.ID(), RoleID: role.ID()},
			Changed:    removed,
		}
		return nil
	})
	if err != nil {
		return RoleAssignmentResult{}, err
	}

	if result.Changed {
		invalidatePermissions(ctx, s.cache, s.logger, userID)
		s.logger.Info("role revoked", zap.String("user_id", userID.String()), zap.String("role_id", roleID.String()))
	}
	return result, nil
}

// RevokeAllRoles removes every role of the user and returns how many assignments were removed.
func (s *RoleAssignmentService) RevokeAllRoles(ctx context.Context, rawUserID string) (int, error) {
	ctx, span := tracer.Start(ctx, "RoleAssignmentService.RevokeAllRoles")
	defer span.End()

	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return 0, err
	}

	var removed int
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := loadUser(ctx, s.users, userID); err != nil {
			return err
		}
		n, err := s.assignments.DeleteAllForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("delete role assignments: %w", err)
		}
		removed = n
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	if removed > 0 {
		invalidatePermissions(ctx, s.cache, s.logger, userID)
	}
	s.logger.Info("roles revoked", zap.String("user_id", userID.String()), zap.Int("count", removed))
	return removed, nil
}

// ListAssignments returns the user's role assignments in assignment order.
func (s *RoleAssignmentService) ListAssignments(ctx context.Context, rawUserID string) ([]domain.RoleAssignment, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return nil, err
	}
	if _, err := loadUser(ctx, s.users, userID); err != nil {
		return nil, err
	}
	return s.assignments.ListByUser(ctx, userID)
}

func loadUser(ctx context.Context, users port.UserRepository, id domain.UserID) (domain.User, error) {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return *user, nil
}

func loadRole(ctx context.Context, roles port.RoleRepository, id domain.RoleID) (domain.Role, error) {
	role, err := roles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, id)
		}
		return domain.Role{}, fmt.Errorf("load role: %w", err)
	}
	return *role, nil
}

// invalidatePermissions drops the cached permission list. Failures only delay freshness until the TTL expires.
func invalidatePermissions(ctx context.Context, cache port.PermissionCache, logger *zap.Logger, userID domain.UserID) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, userID); err != nil {
		logger.Warn("invalidate permission cache failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}
