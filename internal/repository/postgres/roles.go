package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

// RoleRepository implements role persistence operations, including the role_permissions links.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{
		exec:    exec,
		builder: newBuilder(),
		now:     time.Now,
	}
}

type roleRow struct {
	id          string
	name        string
	displayName string
}

// FindByID retrieves a role with its permission ids.
func (r *RoleRepository) FindByID(ctx context.Context, id domain.RoleID) (*domain.Role, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id.String()})
}

// FindByName retrieves a role by its unique system name.
func (r *RoleRepository) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.findOne(ctx, squirrel.Eq{"name": name})
}

func (r *RoleRepository) findOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Role, error) {
	exec := executorFrom(ctx, r.exec)

	stmt, args, err := r.builder.Select("id", "name", "display_name").
		From("iam.roles").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role sql: %w", err)
	}

	var row roleRow
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&row.id, &row.name, &row.displayName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}

	links, err := r.permissionLinks(ctx, exec, []string{row.id})
	if err != nil {
		return nil, err
	}
	role, err := buildRole(row, links[row.id])
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// FindByIDs returns the roles in the order of ids, skipping unknown ids.
func (r *RoleRepository) FindByIDs(ctx context.Context, ids []domain.RoleID) ([]domain.Role, error) {
	if len(ids) == 0 {
		return []domain.Role{}, nil
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	roles, err := r.list(ctx, squirrel.Eq{"id": raw})
	if err != nil {
		return nil, err
	}

	byID := make(map[domain.RoleID]domain.Role, len(roles))
	for _, role := range roles {
		byID[role.ID()] = role
	}

	ordered := make([]domain.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := byID[id]; ok {
			ordered = append(ordered, role)
		}
	}
	return ordered, nil
}

// FindAll retrieves all roles sorted by name.
func (r *RoleRepository) FindAll(ctx context.Context) ([]domain.Role, error) {
	return r.list(ctx, nil)
}

func (r *RoleRepository) list(ctx context.Context, where squirrel.Sqlizer) ([]domain.Role, error) {
	exec := executorFrom(ctx, r.exec)

	query := r.builder.Select("id", "name", "display_name").
		From("iam.roles").
		OrderBy("name ASC")
	if where != nil {
		query = query.Where(where)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}

	var roleRows []roleRow
	for rows.Next() {
		var row roleRow
		if err := rows.Scan(&row.id, &row.name, &row.displayName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roleRows = append(roleRows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	roles := make([]domain.Role, 0, len(roleRows))
	if len(roleRows) == 0 {
		return roles, nil
	}

	roleIDs := make([]string, 0, len(roleRows))
	for _, row := range roleRows {
		roleIDs = append(roleIDs, row.id)
	}
	links, err := r.permissionLinks(ctx, exec, roleIDs)
	if err != nil {
		return nil, err
	}

	for _, row := range roleRows {
		role, err := buildRole(row, links[row.id])
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// permissionLinks loads the ordered permission ids of each role.
func (r *RoleRepository) permissionLinks(ctx context.Context, exec pgExecutor, roleIDs []string) (map[string][]string, error) {
	stmt, args, err := r.builder.Select("role_id", "permission_id").
		From("iam.role_permissions").
		Where(squirrel.Eq{"role_id": roleIDs}).
		OrderBy("role_id ASC", "position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role permissions sql: %w", err)
	}

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query role permissions: %w", err)
	}
	defer rows.Close()

	links := make(map[string][]string, len(roleIDs))
	for rows.Next() {
		var roleID, permissionID string
		if err := rows.Scan(&roleID, &permissionID); err != nil {
			return nil, fmt.Errorf("scan role permission: %w", err)
		}
		links[roleID] = append(links[roleID], permissionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role permissions: %w", err)
	}
	return links, nil
}

func buildRole(row roleRow, permissionIDs []string) (domain.Role, error) {
	id, err := domain.ParseRoleID(row.id)
	if err != nil {
		return domain.Role{}, fmt.Errorf("decode role id: %w", err)
	}
	ids, err := domain.PermissionIDsFromStrings(permissionIDs)
	if err != nil {
		return domain.Role{}, fmt.Errorf("decode role %s permissions: %w", row.id, err)
	}
	role, err := domain.ReconstituteRole(id, row.name, row.displayName, ids)
	if err != nil {
		return domain.Role{}, fmt.Errorf("reconstitute role %s: %w", row.id, err)
	}
	return role, nil
}

// Save upserts the role and rewrites its permission links. Callers wrap it in a transaction.
func (r *RoleRepository) Save(ctx context.Context, role domain.Role) (domain.Role, error) {
	exec := executorFrom(ctx, r.exec)
	now := r.now().UTC()

	stmt, args, err := r.builder.Insert("iam.roles").
		Columns("id", "name", "display_name", "created_at", "updated_at").
		Values(role.ID().String(), role.Name(), role.DisplayName(), now, now).
		Suffix("ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return domain.Role{}, fmt.Errorf("build upsert role sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.Role{}, fmt.Errorf("upsert role: %w", repository.ErrConflict)
		}
		return domain.Role{}, fmt.Errorf("upsert role: %w", err)
	}

	clearStmt, clearArgs, err := r.builder.Delete("iam.role_permissions").
		Where(squirrel.Eq{"role_id": role.ID().String()}).
		ToSql()
	if err != nil {
		return domain.Role{}, fmt.Errorf("build clear role permissions sql: %w", err)
	}
	if _, err := exec.Exec(ctx, clearStmt, clearArgs...); err != nil {
		return domain.Role{}, fmt.Errorf("clear role permissions: %w", err)
	}

	if role.PermissionIDs().IsEmpty() {
		return role, nil
	}

	query := r.builder.Insert("iam.role_permissions").
		Columns("role_id", "permission_id", "position")
	for i, permissionID := range role.PermissionIDs().All() {
		query = query.Values(role.ID().String(), permissionID.String(), i)
	}
	linkStmt, linkArgs, err := query.ToSql()
	if err != nil {
		return domain.Role{}, fmt.Errorf("build insert role permissions sql: %w", err)
	}
	if _, err := exec.Exec(ctx, linkStmt, linkArgs...); err != nil {
		return domain.Role{}, fmt.Errorf("insert role permissions: %w", err)
	}

	return role, nil
}

// Delete removes the role; permission links and user assignments cascade.
func (r *RoleRepository) Delete(ctx context.Context, role domain.Role) (bool, error) {
	stmt, args, err := r.builder.Delete("iam.roles").
		Where(squirrel.Eq{"id": role.ID().String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete role sql: %w", err)
	}

	ct, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("delete role: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ExistsByName reports whether a role already uses name.
func (r *RoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"name": name}, "roles by name")
}

// ExistsByID reports whether the role exists.
func (r *RoleRepository) ExistsByID(ctx context.Context, id domain.RoleID) (bool, error) {
	return r.exists(ctx, squirrel.Eq{"id": id.String()}, "roles by id")
}

func (r *RoleRepository) exists(ctx context.Context, where squirrel.Sqlizer, what string) (bool, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("iam.roles").
		Where(where).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build count %s sql: %w", what, err)
	}
	return countPositive(ctx, executorFrom(ctx, r.exec), stmt, args, what)
}

var _ port.RoleRepository = (*RoleRepository)(nil)
