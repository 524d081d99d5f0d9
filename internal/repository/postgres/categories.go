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

var categoryColumns = []string{"id", "code", "name", "description", "is_active"}

// UserCategoryRepository implements port.UserCategoryRepository.
type UserCategoryRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewUserCategoryRepository constructs a category repository.
func NewUserCategoryRepository(exec pgExecutor) *UserCategoryRepository {
	return &UserCategoryRepository{
		exec:    exec,
		builder: newBuilder(),
		now:     time.Now,
	}
}

// FindByID retrieves a category with its permission ids.
func (r *UserCategoryRepository) FindByID(ctx context.Context, id domain.UserCategoryID) (*domain.UserCategory, error) {
	categories, err := r.FindByIDs(ctx, []domain.UserCategoryID{id})
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, repository.ErrNotFound
	}
	return &categories[0], nil
}

// FindByIDs returns the categories in the order of ids, skipping unknown ids.
func (r *UserCategoryRepository) FindByIDs(ctx context.Context, ids []domain.UserCategoryID) ([]domain.UserCategory, error) {
	if len(ids) == 0 {
		return []domain.UserCategory{}, nil
	}
	exec := executorFrom(ctx, r.exec)

	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.String())
	}

	stmt, args, err := r.builder.Select(categoryColumns...).
		From("iam.user_categories").
		Where(squirrel.Eq{"id": raw}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select categories sql: %w", err)
	}

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}

	snapshots := make(map[string]domain.UserCategorySnapshot, len(ids))
	for rows.Next() {
		var (
			rawID    string
			snapshot domain.UserCategorySnapshot
		)
		if err := rows.Scan(&rawID, &snapshot.Code, &snapshot.Name, &snapshot.Description, &snapshot.IsActive); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if snapshot.ID, err = domain.ParseUserCategoryID(rawID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode category id: %w", err)
		}
		snapshots[rawID] = snapshot
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	categories := make([]domain.UserCategory, 0, len(snapshots))
	if len(snapshots) == 0 {
		return categories, nil
	}

	links, err := r.permissionLinks(ctx, exec, raw)
	if err != nil {
		return nil, err
	}

	for _, id := range raw {
		snapshot, ok := snapshots[id]
		if !ok {
			continue
		}
		if snapshot.PermissionIDs, err = domain.PermissionIDsFromStrings(links[id]); err != nil {
			return nil, fmt.Errorf("decode category %s permissions: %w", id, err)
		}
		category, err := domain.ReconstituteUserCategory(snapshot)
		if err != nil {
			return nil, fmt.Errorf("reconstitute category %s: %w", id, err)
		}
		categories = append(categories, category)
	}
	return categories, nil
}

func (r *UserCategoryRepository) permissionLinks(ctx context.Context, exec pgExecutor, categoryIDs []string) (map[string][]string, error) {
	stmt, args, err := r.builder.Select("user_category_id", "permission_id").
		From("iam.user_category_permissions").
		Where(squirrel.Eq{"user_category_id": categoryIDs}).
		OrderBy("user_category_id ASC", "position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select category permissions sql: %w", err)
	}

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query category permissions: %w", err)
	}
	defer rows.Close()

	links := make(map[string][]string, len(categoryIDs))
	for rows.Next() {
		var categoryID, permissionID string
		if err := rows.Scan(&categoryID, &permissionID); err != nil {
			return nil, fmt.Errorf("scan category permission: %w", err)
		}
		links[categoryID] = append(links[categoryID], permissionID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category permissions: %w", err)
	}
	return links, nil
}

// Save upserts the category and rewrites its permission links. Callers wrap it in a transaction.
func (r *UserCategoryRepository) Save(ctx context.Context, category domain.UserCategory) (domain.UserCategory, error) {
	exec := executorFrom(ctx, r.exec)
	now := r.now().UTC()

	stmt, args, err := r.builder.Insert("iam.user_categories").
		Columns("id", "code", "name", "description", "is_active", "created_at", "updated_at").
		Values(
			category.ID().String(),
			category.Code(),
			category.Name(),
			category.Description(),
			category.IsActive(),
			now,
			now,
		).
		Suffix("ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, description = EXCLUDED.description, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return domain.UserCategory{}, fmt.Errorf("build upsert category sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.UserCategory{}, fmt.Errorf("upsert category: %w", repository.ErrConflict)
		}
		return domain.UserCategory{}, fmt.Errorf("upsert category: %w", err)
	}

	clearStmt, clearArgs, err := r.builder.Delete("iam.user_category_permissions").
		Where(squirrel.Eq{"user_category_id": category.ID().String()}).
		ToSql()
	if err != nil {
		return domain.UserCategory{}, fmt.Errorf("build clear category permissions sql: %w", err)
	}
	if _, err := exec.Exec(ctx, clearStmt, clearArgs...); err != nil {
		return domain.UserCategory{}, fmt.Errorf("clear category permissions: %w", err)
	}

	if category.PermissionIDs().IsEmpty() {
		return category, nil
	}

	query := r.builder.Insert("iam.user_category_permissions").
		Columns("user_category_id", "permission_id", "position")
	for i, permissionID := range category.PermissionIDs().All() {
		query = query.Values(category.ID().String(), permissionID.String(), i)
	}
	linkStmt, linkArgs, err := query.ToSql()
	if err != nil {
		return domain.UserCategory{}, fmt.Errorf("build insert category permissions sql: %w", err)
	}
	if _, err := exec.Exec(ctx, linkStmt, linkArgs...); err != nil {
		return domain.UserCategory{}, fmt.Errorf("insert category permissions: %w", err)
	}

	return category, nil
}

var _ port.UserCategoryRepository = (*UserCategoryRepository)(nil)

// CategoryAssignmentRepository implements port.CategoryAssignmentRepository over the
// effective-dated iam.user_category_assignments history.
type CategoryAssignmentRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCategoryAssignmentRepository constructs a category assignment repository.
func NewCategoryAssignmentRepository(exec pgExecutor) *CategoryAssignmentRepository {
	return &CategoryAssignmentRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// ListByUser returns the user's full assignment history, primary rows first.
func (r *CategoryAssignmentRepository) ListByUser(ctx context.Context, userID domain.UserID) ([]domain.CategoryAssignment, error) {
	stmt, args, err := r.builder.Select("user_category_id", "is_primary", "effective_from", "effective_until").
		From("iam.user_category_assignments").
		Where(squirrel.Eq{"user_id": userID.String()}).
		OrderBy("is_primary DESC", "effective_from ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list category assignments sql: %w", err)
	}

	rows, err := executorFrom(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query category assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]domain.CategoryAssignment, 0)
	for rows.Next() {
		var (
			rawCategoryID string
			assignment    domain.CategoryAssignment
		)
		if err := rows.Scan(&rawCategoryID, &assignment.IsPrimary, &assignment.EffectiveFrom, &assignment.EffectiveUntil); err != nil {
			return nil, fmt.Errorf("scan category assignment: %w", err)
		}
		if assignment.CategoryID, err = domain.ParseUserCategoryID(rawCategoryID); err != nil {
			return nil, fmt.Errorf("decode category id: %w", err)
		}
		assignment.UserID = userID
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category assignments: %w", err)
	}

	return assignments, nil
}

// Expire ends the user's open assignment of categoryID on until. It reports false when no open row exists.
func (r *CategoryAssignmentRepository) Expire(ctx context.Context, userID domain.UserID, categoryID domain.UserCategoryID, until time.Time) (bool, error) {
	stmt, args, err := r.builder.Update("iam.user_category_assignments").
		Set("effective_until", domain.DateOf(until)).
		Where(squirrel.Eq{
			"user_id":          userID.String(),
			"user_category_id": categoryID.String(),
			"effective_until":  nil,
		}).
		Where(squirrel.LtOrEq{"effective_from": domain.DateOf(until)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build expire category assignment sql: %w", err)
	}

	ct, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("expire category assignment: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

var _ port.CategoryAssignmentRepository = (*CategoryAssignmentRepository)(nil)
