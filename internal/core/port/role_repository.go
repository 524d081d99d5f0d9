package port

import (
	"context"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

// RoleRepository handles role persistence including role-permission links.
type RoleRepository interface {
	FindByID(ctx context.Context, id domain.RoleID) (*domain.Role, error)
	FindByIDs(ctx context.Context, ids []domain.RoleID) ([]domain.Role, error)
	FindByName(ctx context.Context, name string) (*domain.Role, error)
	FindAll(ctx context.Context) ([]domain.Role, error)
	Save(ctx context.Context, role domain.Role) (domain.Role, error)
	Delete(ctx context.Context, role domain.Role) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByID(ctx context.Context, id domain.RoleID) (bool, error)
}

// RoleAssignmentRepository persists user-role links.
// Insert returns repository.ErrConflict when the pair already exists.
type RoleAssignmentRepository interface {
	Exists(ctx context.Context, userID domain.UserID, roleID domain.RoleID) (bool, error)
	Insert(ctx context.Context, assignment domain.RoleAssignment) error
	Delete(ctx context.Context, userID domain.UserID, roleID domain.RoleID) (bool, error)
	DeleteAllForUser(ctx context.Context, userID domain.UserID) (int, error)
	ListByUser(ctx context.Context, userID domain.UserID) ([]domain.RoleAssignment, error)
	ListUsersByRole(ctx context.Context, roleID domain.RoleID) ([]domain.UserID, error)
}
