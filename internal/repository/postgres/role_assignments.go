package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

// RoleAssignmentRepository implements port.RoleAssignmentRepository over iam.user_roles.
type RoleAssignmentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleAssignmentRepository constructs a role assignment repository.
func NewRoleAssignmentRepository(exec pgExecutor) *RoleAssignmentRepository {
	return &RoleAssignmentRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Exists reports whether the user already holds the role.
func (r *RoleAssignmentRepository) Exists(ctx context.Context, userID domain.UserID, roleID domain.RoleID) (bool, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("iam.user_roles").
		Where(squirrel.Eq{"user_id": userID.String(), "role_id": roleID.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build count user roles sql: %w", err)
	}
	return countPositive(ctx, executorFrom(ctx, r.exec), stmt, args, "user roles")
}

// Insert stores the assignment. The statement never fails on the primary key so an
// enclosing transaction stays usable; a skipped row is reported as repository.ErrConflict.
func (r *RoleAssignmentRepository) Insert(ctx context.Context, assignment domain.RoleAssignment) error {
	var assigner any
	if assignment.AssignedBy != nil {
		assigner = assignment.AssignedBy.String()
	}

	stmt, args, err := r.builder.Insert("iam.user_roles").
		Columns("user_id", "role_id", "assigned_at", "assigned_by").
		Values(assignment.UserID.String(), assignment.RoleID.String(), assignment.AssignedAt.UTC(), assigner).
		Suffix("ON CONFLICT (user_id, role_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user role sql: %w", err)
	}

	ct, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("insert user role: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("insert user role: %w", repository.ErrConflict)
	}
	return nil
}

// Delete removes one assignment and reports whether a row existed.
func (r *RoleAssignmentRepository) Delete(ctx context.Context, userID domain.UserID, roleID domain.RoleID) (bool, error) {
	stmt, args, err := r.builder.Delete("iam.user_roles").
		Where(squirrel.Eq{"user_id": userID.String(), "role_id": roleID.String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete user role sql: %w", err)
	}

	ct, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("delete user role: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// DeleteAllForUser removes every assignment of the user and returns how many were removed.
func (r *RoleAssignmentRepository) DeleteAllForUser(ctx context.Context, userID domain.UserID) (int, error) {
	stmt, args, err := r.builder.Delete("iam.user_roles").
		Where(squirrel.Eq{"user_id": userID.String()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete user roles sql: %w", err)
	}

	ct, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete user roles: %w", err)
	}
	return int(ct.RowsAffected()), nil
}

// ListByUser lists the user's assignments in assignment order.
func (r *RoleAssignmentRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.RoleAssignment, error) {
	stmt, args, err := r.builder.Select("role_id", "assigned_at", "assigned_by").
		From("iam.user_roles").
		Where(squirrel.Eq{"user_id": userID.String()}).
		OrderBy("assigned_at ASC", "role_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get user roles sql: %w", err)
	}

	rows, err := executorFrom(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	assignments := make([]domain.RoleAssignment, 0)
	for rows.Next() {
		var (
			rawRoleID  string
			assignedAt time.Time
			assignedBy *string
		)
		if err := rows.Scan(&rawRoleID, &assignedAt, &assignedBy); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}

		roleID, err := domain.ParseRoleID(rawRoleID)
		if err != nil {
			return nil, fmt.Errorf("decode role id: %w", err)
		}
		assignment := domain.RoleAssignment{UserID: userID, RoleID: roleID, AssignedAt: assignedAt}
		if assignedBy != nil {
			by, err := domain.ParseUserID(*assignedBy)
			if err != nil {
				return nil, fmt.Errorf("decode assigner id: %w", err)
			}
			assignment.AssignedBy = &by
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}

	return assignments, nil
}

// ListUsersByRole returns the holders of a role.
func (r *RoleAssignmentRepository) ListUsersByRole(ctx context.Context, roleID domain.RoleID) ([]domain.UserID, error) {
	stmt, args, err := r.builder.Select("user_id").
		From("iam.user_roles").
		Where(squirrel.Eq{"role_id": roleID.String()}).
		OrderBy("user_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get role holders sql: %w", err)
	}

	rows, err := executorFrom(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role holders: %w", err)
	}
	defer rows.Close()

	holders := make([]domain.UserID, 0)
	for rows.Next() {
		var rawUserID string
		if err := rows.Scan(&rawUserID); err != nil {
			return nil, fmt.Errorf("scan role holder: %w", err)
		}
		userID, err := domain.ParseUserID(rawUserID)
		if err != nil {
			return nil, fmt.Errorf("decode user id: %w", err)
		}
		holders = append(holders, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role holders: %w", err)
	}

	return holders, nil
}

var _ port.RoleAssignmentRepository = (*RoleAssignmentRepository)(nil)
