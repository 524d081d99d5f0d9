package port

import (
	"context"
	"time"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// UserCategoryRepository manages category storage.
type UserCategoryRepository interface {
	FindByID(ctx context.Context, id domain.UserCategoryID) (*domain.UserCategory, error)
	// FindByIDs returns the matching categories in the order of ids, skipping unknown ids.
	FindByIDs(ctx context.Context, ids []domain.UserCategoryID) ([]domain.UserCategory, error)
	Save(ctx context.Context, category domain.UserCategory) (domain.UserCategory, error)
}

// CategoryAssignmentRepository reads and expires effective-dated category assignments.
type CategoryAssignmentRepository interface {
	// ListByUser returns the full history for the user, primary rows first then by effective_from.
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.CategoryAssignment, error)
	// Expire sets effective_until on the user's current assignment of categoryID.
	Expire(ctx context.Context, userID domain.UserID, categoryID domain.UserCategoryID, until time.Time) (bool, error)
}
