package port

import (
	"context"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// PermissionRepository manages permission storage.
type PermissionRepository interface {
	FindByID(ctx context.Context, id domain.PermissionID) (*domain.Permission, error)
	// FindByIDs returns the matching permissions in the order of ids, skipping unknown ids.
	FindByIDs(ctx context.Context, ids []domain.PermissionID) ([]domain.Permission, error)
	FindByKey(ctx context.Context, key string) (*domain.Permission, error)
	FindByKeys(ctx context.Context, keys []string) ([]domain.Permission, error)
	FindByResource(ctx context.Context, resource string) ([]domain.Permission, error)
	Create(ctx context.Context, permission domain.Permission) (domain.Permission, error)
	All(ctx context.Context) ([]domain.Permission, error)
	ExistsByKey(ctx context.Context, key string) (bool, error)
}
