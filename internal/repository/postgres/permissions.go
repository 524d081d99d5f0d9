package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

var permissionColumns = []string{"id", "permission_key", "name", "description"}

// PermissionRepository implements port.PermissionRepository over PostgreSQL.
type PermissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPermissionRepository constructs a permission repository instance.
func NewPermissionRepository(exec pgExecutor) *PermissionRepository {
	return &PermissionRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Create inserts a new permission row. Resource and action are stored for filtering.
func (r *PermissionRepository) Create(ctx context.Context, permission domain.Permission) (domain.Permission, error) {
	stmt, args, err := r.builder.Insert("iam.permissions").
		Columns("id", "permission_key", "resource", "action", "name", "description").
		Values(
			permission.ID().String(),
			permission.Key().String(),
			permission.Resource(),
			permission.Action(),
			permission.Name(),
			permission.Description(),
		).
		ToSql()
	if err != nil {
		return domain.Permission{}, fmt.Errorf("build insert permission sql: %w", err)
	}

	if _, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.Permission{}, fmt.Errorf("insert permission: %w", repository.ErrConflict)
		}
		return domain.Permission{}, fmt.Errorf("insert permission: %w", err)
	}

	return permission, nil
}

// FindByID retrieves a permission by identifier.
func (r *PermissionRepository) FindByID(ctx context.Context, id domain.PermissionID) (*domain.Permission, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id.String()})
}

// FindByKey retrieves a permission by its unique key.
func (r *PermissionRepository) FindByKey(ctx context.Context, key string) (*domain.Permission, error) {
	return r.findOne(ctx, squirrel.Eq{"permission_key": key})
}

func (r *PermissionRepository) findOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Permission, error) {
	stmt, args, err := r.builder.Select(permissionColumns...).
		From("iam.permissions").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission sql: %w", err)
	}

	permission, err := scanPermission(executorFrom(ctx, r.exec).QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &permission, nil
}

// FindByIDs returns permissions in the order of ids, skipping unknown ids.
func (r *PermissionRepository) FindByIDs(ctx context.Context, ids []domain.PermissionID) ([]domain.Permission, error) {
	if len(ids) == 0 {
		return []domain.Permission{}, nil
	}

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	found, err := r.list(ctx, squirrel.Eq{"id": raw}, "id ASC")
	if err != nil {
		return nil, err
	}

	byID := make(map[domain.PermissionID]domain.Permission, len(found))
	for _, permission := range found {
		byID[permission.ID()] = permission
	}

	ordered := make([]domain.Permission, 0, len(ids))
	for _, id := range ids {
		if permission, ok := byID[id]; ok {
			ordered = append(ordered, permission)
		}
	}
	return ordered, nil
}

// FindByKeys returns the permissions matching keys, ordered by key.
func (r *PermissionRepository) FindByKeys(ctx context.Context, keys []string) ([]domain.Permission, error) {
	if len(keys) == 0 {
		return []domain.Permission{}, nil
	}
	return r.list(ctx, squirrel.Eq{"permission_key": keys}, "permission_key ASC")
}

// FindByResource lists every permission of one resource.
func (r *PermissionRepository) FindByResource(ctx context.Context, resource string) ([]domain.Permission, error) {
	return r.list(ctx, squirrel.Eq{"resource": resource}, "permission_key ASC")
}

// All lists every permission ordered by key.
func (r *PermissionRepository) All(ctx context.Context) ([]domain.Permission, error) {
	return r.list(ctx, nil, "permission_key ASC")
}

// ExistsByKey reports whether key is already registered.
func (r *PermissionRepository) ExistsByKey(ctx context.Context, key string) (bool, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("iam.permissions").
		Where(squirrel.Eq{"permission_key": key}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build count permissions sql: %w", err)
	}
	return countPositive(ctx, executorFrom(ctx, r.exec), stmt, args, "permissions by key")
}

func (r *PermissionRepository) list(ctx context.Context, where squirrel.Sqlizer, orderBy string) ([]domain.Permission, error) {
	query := r.builder.Select(permissionColumns...).
		From("iam.permissions").
		OrderBy(orderBy)
	if where != nil {
		query = query.Where(where)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permissions sql: %w", err)
	}

	rows, err := executorFrom(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	permissions := make([]domain.Permission, 0)
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, permission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}

	return permissions, nil
}

func scanPermission(row pgx.Row) (domain.Permission, error) {
	var (
		rawID       string
		key         string
		name        string
		description *string
	)
	if err := row.Scan(&rawID, &key, &name, &description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Permission{}, err
		}
		return domain.Permission{}, fmt.Errorf("scan permission: %w", err)
	}

	id, err := domain.ParsePermissionID(rawID)
	if err != nil {
		return domain.Permission{}, fmt.Errorf("decode permission id: %w", err)
	}
	permission, err := domain.ReconstitutePermission(id, key, name, description)
	if err != nil {
		return domain.Permission{}, fmt.Errorf("reconstitute permission %s: %w", rawID, err)
	}
	return permission, nil
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)
