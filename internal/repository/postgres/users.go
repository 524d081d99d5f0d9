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

var userColumns = []string{"id", "name", "email", "status", "email_verified_at"}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	hasher  port.PasswordHasher
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewUserRepository wires a PostgreSQL-backed user repository. hasher turns plain passwords into stored hashes.
func NewUserRepository(exec pgExecutor, hasher port.PasswordHasher) *UserRepository {
	return &UserRepository{
		exec:    exec,
		hasher:  hasher,
		builder: newBuilder(),
		now:     time.Now,
	}
}

// FindByID retrieves a user aggregate together with its role and current category ids.
func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id.String()})
}

// FindByEmail retrieves a user by email, ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, squirrel.Expr("lower(email) = lower(?)", email))
}

func (r *UserRepository) findOne(ctx context.Context, where squirrel.Sqlizer) (*domain.User, error) {
	exec := executorFrom(ctx, r.exec)

	stmt, args, err := r.builder.Select(userColumns...).
		From("iam.users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var (
		rawID           string
		snapshot        domain.UserSnapshot
		status          string
		emailVerifiedAt *time.Time
	)
	if err := exec.QueryRow(ctx, stmt, args...).Scan(
		&rawID,
		&snapshot.Name,
		&snapshot.Email,
		&status,
		&emailVerifiedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	snapshot.ID, err = domain.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("decode user id: %w", err)
	}
	snapshot.Status = domain.AccountStatus(status)
	snapshot.EmailVerifiedAt = emailVerifiedAt

	if snapshot.RoleIDs, err = r.roleIDs(ctx, exec, snapshot.ID); err != nil {
		return nil, err
	}
	if snapshot.CategoryIDs, err = r.currentCategoryIDs(ctx, exec, snapshot.ID); err != nil {
		return nil, err
	}

	user, err := domain.ReconstituteUser(snapshot)
	if err != nil {
		return nil, fmt.Errorf("reconstitute user %s: %w", rawID, err)
	}
	return &user, nil
}

func (r *UserRepository) roleIDs(ctx context.Context, exec pgExecutor, id domain.UserID) (domain.RoleIDs, error) {
	stmt, args, err := r.builder.Select("role_id").
		From("iam.user_roles").
		Where(squirrel.Eq{"user_id": id.String()}).
		OrderBy("assigned_at ASC", "role_id ASC").
		ToSql()
	if err != nil {
		return domain.RoleIDs{}, fmt.Errorf("build select user roles sql: %w", err)
	}

	raw, err := collectStrings(ctx, exec, stmt, args, "user roles")
	if err != nil {
		return domain.RoleIDs{}, err
	}
	ids, err := domain.RoleIDsFromStrings(raw)
	if err != nil {
		return domain.RoleIDs{}, fmt.Errorf("decode user roles: %w", err)
	}
	return ids, nil
}

// currentCategoryIDs lists categories whose assignment is active today, primary first.
func (r *UserRepository) currentCategoryIDs(ctx context.Context, exec pgExecutor, id domain.UserID) (domain.CategoryIDs, error) {
	today := domain.DateOf(r.now())
	stmt, args, err := r.builder.Select("user_category_id").
		From("iam.user_category_assignments").
		Where(squirrel.Eq{"user_id": id.String()}).
		Where(squirrel.LtOrEq{"effective_from": today}).
		Where(squirrel.Or{
			squirrel.Eq{"effective_until": nil},
			squirrel.GtOrEq{"effective_until": today},
		}).
		OrderBy("is_primary DESC", "effective_from ASC", "id ASC").
		ToSql()
	if err != nil {
		return domain.CategoryIDs{}, fmt.Errorf("build select user categories sql: %w", err)
	}

	raw, err := collectStrings(ctx, exec, stmt, args, "user categories")
	if err != nil {
		return domain.CategoryIDs{}, err
	}
	// Overlapping history rows may name the same category twice.
	unique, err := domain.ParseIDCollection(domain.UniqueSilent, domain.ParseUserCategoryID, raw)
	if err != nil {
		return domain.CategoryIDs{}, fmt.Errorf("decode user categories: %w", err)
	}
	return domain.NewCategoryIDs(unique.All()...)
}

// Add inserts a new user row, storing the hash of plainPassword.
func (r *UserRepository) Add(ctx context.Context, user domain.User, plainPassword string) (domain.User, error) {
	hash, err := r.hasher.Hash(plainPassword)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := r.now().UTC()
	stmt, args, err := r.builder.Insert("iam.users").
		Columns("id", "name", "email", "password_hash", "status", "email_verified_at", "created_at", "updated_at").
		Values(
			user.ID().String(),
			user.Name(),
			user.Email(),
			hash,
			string(user.Status()),
			user.EmailVerifiedAt(),
			now,
			now,
		).
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	if !user.RoleIDs().IsEmpty() {
		if err := r.AssignRoles(ctx, user.ID(), user.RoleIDs(), nil); err != nil {
			return domain.User{}, err
		}
	}
	if primary, err := user.CategoryIDs().PrimaryID(); err == nil {
		if err := r.AssignCategories(ctx, user.ID(), user.CategoryIDs(), primary, now); err != nil {
			return domain.User{}, err
		}
	}

	return user, nil
}

// Update stores the mutable user attributes. A nil plainPassword keeps the stored hash.
func (r *UserRepository) Update(ctx context.Context, user domain.User, plainPassword *string) (domain.User, error) {
	query := r.builder.Update("iam.users").
		Set("name", user.Name()).
		Set("email", user.Email()).
		Set("status", string(user.Status())).
		Set("email_verified_at", user.EmailVerifiedAt()).
		Set("updated_at", r.now().UTC()).
		Where(squirrel.Eq{"id": user.ID().String()})

	if plainPassword != nil {
		hash, err := r.hasher.Hash(*plainPassword)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		query = query.Set("password_hash", hash)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("build update user sql: %w", err)
	}

	ct, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, fmt.Errorf("update user: %w", repository.ErrConflict)
		}
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.User{}, repository.ErrNotFound
	}

	return user, nil
}

// Delete removes the user row; role and category links cascade.
func (r *UserRepository) Delete(ctx context.Context, user domain.User) (bool, error) {
	stmt, args, err := r.builder.Delete("iam.users").
		Where(squirrel.Eq{"id": user.ID().String()}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// ExistsByEmail reports whether any user already uses email, ignoring case.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("iam.users").
		Where(squirrel.Expr("lower(email) = lower(?)", email)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build count users by email sql: %w", err)
	}
	return countPositive(ctx, executorFrom(ctx, r.exec), stmt, args, "users by email")
}

// PasswordHash returns the stored hash used for credential checks.
func (r *UserRepository) PasswordHash(ctx context.Context, id domain.UserID) (string, error) {
	stmt, args, err := r.builder.Select("password_hash").
		From("iam.users").
		Where(squirrel.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build select password hash sql: %w", err)
	}

	var hash string
	if err := executorFrom(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("scan password hash: %w", err)
	}
	return hash, nil
}

// AssignCategories replaces the user's open category assignments with categoryIDs starting on effectiveFrom.
// Open rows that began earlier are expired the day before, rows that had not begun yet are superseded,
// and the new rows are inserted with primary as the only primary row.
// Callers run it inside a transaction so the three statements apply atomically.
func (r *UserRepository) AssignCategories(ctx context.Context, id domain.UserID, categoryIDs domain.CategoryIDs, primary domain.UserCategoryID, effectiveFrom time.Time) error {
	if categoryIDs.IsEmpty() {
		return domain.ErrNoPrimaryCategory
	}
	if !categoryIDs.Contains(primary) {
		return fmt.Errorf("%w: primary %s is not among the assigned categories", domain.ErrNoPrimaryCategory, primary)
	}

	exec := executorFrom(ctx, r.exec)
	from := domain.DateOf(effectiveFrom)

	expireStmt, expireArgs, err := r.builder.Update("iam.user_category_assignments").
		Set("effective_until", from.AddDate(0, 0, -1)).
		Where(squirrel.Eq{"user_id": id.String(), "effective_until": nil}).
		Where(squirrel.Lt{"effective_from": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build expire category assignments sql: %w", err)
	}
	if _, err := exec.Exec(ctx, expireStmt, expireArgs...); err != nil {
		return fmt.Errorf("expire category assignments: %w", err)
	}

	supersedeStmt, supersedeArgs, err := r.builder.Delete("iam.user_category_assignments").
		Where(squirrel.Eq{"user_id": id.String(), "effective_until": nil}).
		Where(squirrel.GtOrEq{"effective_from": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build supersede category assignments sql: %w", err)
	}
	if _, err := exec.Exec(ctx, supersedeStmt, supersedeArgs...); err != nil {
		return fmt.Errorf("supersede category assignments: %w", err)
	}

	query := r.builder.Insert("iam.user_category_assignments").
		Columns("user_id", "user_category_id", "is_primary", "effective_from")
	for _, categoryID := range categoryIDs.All() {
		query = query.Values(id.String(), categoryID.String(), categoryID == primary, from)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build assign categories sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("assign categories: %w", repository.ErrConflict)
		}
		return fmt.Errorf("assign categories: %w", err)
	}

	return nil
}

// AssignRoles links the user to roleIDs, ignoring pairs that already exist.
func (r *UserRepository) AssignRoles(ctx context.Context, id domain.UserID, roleIDs domain.RoleIDs, assignedBy *domain.UserID) error {
	if roleIDs.IsEmpty() {
		return nil
	}

	var assigner any
	if assignedBy != nil {
		assigner = assignedBy.String()
	}

	assignedAt := r.now().UTC()
	query := r.builder.Insert("iam.user_roles").
		Columns("user_id", "role_id", "assigned_at", "assigned_by")
	for _, roleID := range roleIDs.All() {
		query = query.Values(id.String(), roleID.String(), assignedAt, assigner)
	}

	stmt, args, err := query.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build assign roles sql: %w", err)
	}

	if _, err := executorFrom(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign roles: %w", err)
	}

	return nil
}

func collectStrings(ctx context.Context, exec pgExecutor, stmt string, args []any, what string) ([]string, error) {
	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	values := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, err)
	}
	return values, nil
}

func countPositive(ctx context.Context, exec pgExecutor, stmt string, args []any, what string) (bool, error) {
	var count int64
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("scan %s count: %w", what, err)
	}
	return count > 0, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
