package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/port"
)

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users               *UserRepository
	Roles               *RoleRepository
	Permissions         *PermissionRepository
	Categories          *UserCategoryRepository
	RoleAssignments     *RoleAssignmentRepository
	CategoryAssignments *CategoryAssignmentRepository
	Tx                  *TxManager
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool, hasher port.PasswordHasher, logger *zap.Logger) *Repositories {
	return &Repositories{
		Users:               NewUserRepository(pool, hasher),
		Roles:               NewRoleRepository(pool),
		Permissions:         NewPermissionRepository(pool),
		Categories:          NewUserCategoryRepository(pool),
		RoleAssignments:     NewRoleAssignmentRepository(pool),
		CategoryAssignments: NewCategoryAssignmentRepository(pool),
		Tx:                  NewTxManager(pool, logger),
	}
}
