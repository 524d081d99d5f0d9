package port

import (
	"context"
	"time"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
// Lookups return repository.ErrNotFound when no row matches.
type UserRepository interface {
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// Add stores a new user, hashing plainPassword.
	Add(ctx context.Context, user domain.User, plainPassword string) (domain.User, error)
	// Update stores a new version of user. A nil password keeps the stored hash.
	Update(ctx context.Context, user domain.User, plainPassword *string) (domain.User, error)
	Delete(ctx context.Context, user domain.User) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// PasswordHash returns the stored password hash for credential checks.
	PasswordHash(ctx context.Context, id domain.UserID) (string, error)
	// AssignCategories writes one current assignment per category, flagging only primary as primary.
	AssignCategories(ctx context.Context, id domain.UserID, categoryIDs domain.CategoryIDs, primary domain.UserCategoryID, effectiveFrom time.Time) error
	// AssignRoles inserts role assignments, ignoring pairs that already exist.
	AssignRoles(ctx context.Context, id domain.UserID, roleIDs domain.RoleIDs, assignedBy *domain.UserID) error
}
