package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

var (
	// ErrPermissionNotFound indicates a referenced permission does not exist.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrPermissionExists indicates the permission key is already registered.
	ErrPermissionExists = errors.New("permission already exists")
)

// CreatePermissionCommand captures a new permission definition.
type CreatePermissionCommand struct {
	Key         string
	Name        string
	Description *string
}

// PermissionService manages the permission catalog.
type PermissionService struct {
	permissions port.PermissionRepository
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(permissions port.PermissionRepository) *PermissionService {
	return &PermissionService{permissions: permissions}
}

// CreatePermission registers a permission under a unique key.
func (s *PermissionService) CreatePermission(ctx context.Context, cmd CreatePermissionCommand) (domain.Permission, error) {
	permission, err := domain.NewPermission(cmd.Key, cmd.Name, cmd.Description)
	if err != nil {
		return domain.Permission{}, err
	}

	exists, err := s.permissions.ExistsByKey(ctx, permission.Key().String())
	if err != nil {
		return domain.Permission{}, fmt.Errorf("check permission key: %w", err)
	}
	if exists {
		return domain.Permission{}, fmt.Errorf("%w: %s", ErrPermissionExists, permission.Key())
	}

	created, err := s.permissions.Create(ctx, permission)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Permission{}, fmt.Errorf("%w: %s", ErrPermissionExists, permission.Key())
		}
		return domain.Permission{}, fmt.Errorf("create permission: %w", err)
	}
	return created, nil
}

// ListPermissions lists every permission, or only those of resource when it is set.
func (s *PermissionService) ListPermissions(ctx context.Context, resource string) ([]domain.Permission, error) {
	resource = strings.TrimSpace(resource)
	if resource == "" {
		return s.permissions.All(ctx)
	}
	return s.permissions.FindByResource(ctx, resource)
}

// GetPermission loads a permission by key.
func (s *PermissionService) GetPermission(ctx context.Context, key string) (domain.Permission, error) {
	permission, err := s.permissions.FindByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Permission{}, fmt.Errorf("%w: %s", ErrPermissionNotFound, key)
		}
		return domain.Permission{}, err
	}
	return *permission, nil
}
