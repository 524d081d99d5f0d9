package port

import (
	"context"
	"time"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// PermissionCache stores the aggregated permission list of a user.
// Get returns repository.ErrNotFound on a cache miss.
type PermissionCache interface {
	Get(ctx context.Context, userID domain.UserID) ([]domain.Permission, error)
	Set(ctx context.Context, userID domain.UserID, permissions []domain.Permission, ttl time.Duration) error
	Invalidate(ctx context.Context, userID domain.UserID) error
}
