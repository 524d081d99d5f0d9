package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

// ErrRoleExists indicates a role with the provided name already exists.
var ErrRoleExists = errors.New("role already exists")

// CreateRoleCommand captures the payload for creating a role.
type CreateRoleCommand struct {
	Name           string
	DisplayName    string
	PermissionKeys []string
}

// RoleService manages the role catalog.
type RoleService struct {
	roles       port.RoleRepository
	permissions port.PermissionRepository
	assignments port.RoleAssignmentRepository
	tx          port.TxManager
	cache       port.PermissionCache
	logger      *zap.Logger
}

// NewRoleService constructs a RoleService. cache may be nil.
func NewRoleService(
	roles port.RoleRepository,
	permissions port.PermissionRepository,
	assignments port.RoleAssignmentRepository,
	tx port.TxManager,
	cache port.PermissionCache,
	logger *zap.Logger,
) *RoleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{
		roles:       roles,
		permissions: permissions,
		assignments: assignments,
		tx:          tx,
		cache:       cache,
		logger:      logger,
	}
}

// ListRoles returns all roles.
func (s *RoleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return s.roles.FindAll(ctx)
}

// GetRole loads a role by id.
func (s *RoleService) GetRole(ctx context.Context, rawRoleID string) (domain.Role, error) {
	roleID, err := domain.ParseRoleID(rawRoleID)
	if err != nil {
		return domain.Role{}, err
	}
	return loadRole(ctx, s.roles, roleID)
}

// CreateRole provisions a new role granting the permissions named by key.
func (s *RoleService) CreateRole(ctx context.Context, cmd CreateRoleCommand) (domain.Role, error) {
	var created domain.Role
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.roles.ExistsByName(ctx, strings.TrimSpace(cmd.Name))
		if err != nil {
			return fmt.Errorf("check role name: %w", err)
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrRoleExists, strings.TrimSpace(cmd.Name))
		}

		permissionIDs, err := s.resolveKeys(ctx, cmd.PermissionKeys)
		if err != nil {
			return err
		}
		role, err := domain.NewRole(cmd.Name, cmd.DisplayName, permissionIDs)
		if err != nil {
			return err
		}

		created, err = s.roles.Save(ctx, role)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: %s", ErrRoleExists, role.Name())
			}
			return fmt.Errorf("save role: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Role{}, err
	}

	s.logger.Info("role created", zap.String("role_id", created.ID().String()), zap.String("name", created.Name()))
	return created, nil
}

// ChangeDisplayName renames a role for display. The system name is immutable.
func (s *RoleService) ChangeDisplayName(ctx context.Context, rawRoleID, displayName string) (domain.Role, error) {
	roleID, err := domain.ParseRoleID(rawRoleID)
	if err != nil {
		return domain.Role{}, err
	}

	var updated domain.Role
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		role, err := loadRole(ctx, s.roles, roleID)
		if err != nil {
			return err
		}
		renamed, err := role.ChangeDisplayName(displayName)
		if err != nil {
			return err
		}
		if updated, err = s.roles.Save(ctx, renamed); err != nil {
			return fmt.Errorf("save role: %w", err)
		}
		return nil
	})
	return updated, err
}

// DeleteRole removes a role together with its assignments. Holders lose the
// role's permissions immediately: their cached permissions are dropped after commit.
func (s *RoleService) DeleteRole(ctx context.Context, rawRoleID string) error {
	roleID, err := domain.ParseRoleID(rawRoleID)
	if err != nil {
		return err
	}

	var holders []domain.UserID
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		role, err := loadRole(ctx, s.roles, roleID)
		if err != nil {
			return err
		}
		if holders, err = s.assignments.ListUsersByRole(ctx, roleID); err != nil {
			return fmt.Errorf("list role holders: %w", err)
		}
		removed, err := s.roles.Delete(ctx, role)
		if err != nil {
			return fmt.Errorf("delete role: %w", err)
		}
		if !removed {
			return fmt.Errorf("%w: %s", ErrRoleNotFound, roleID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, userID := range holders {
		invalidatePermissions(ctx, s.cache, s.logger, userID)
	}
	s.logger.Info("role deleted", zap.String("role_id", roleID.String()), zap.Int("holders", len(holders)))
	return nil
}

func (s *RoleService) resolveKeys(ctx context.Context, keys []string) (domain.PermissionIDs, error) {
	if len(keys) == 0 {
		return domain.PermissionIDs{}, nil
	}

	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}

	found, err := s.permissions.FindByKeys(ctx, unique)
	if err != nil {
		return domain.PermissionIDs{}, fmt.Errorf("load permissions: %w", err)
	}
	byKey := make(map[string]domain.PermissionID, len(found))
	for _, permission := range found {
		byKey[permission.Key().String()] = permission.ID()
	}

	ids := make([]domain.PermissionID, 0, len(unique))
	var missing []string
	for _, key := range unique {
		id, ok := byKey[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return domain.PermissionIDs{}, fmt.Errorf("%w: %s", ErrPermissionNotFound, strings.Join(missing, ", "))
	}
	return domain.NewPermissionIDs(ids...)
}
