package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

var (
	// ErrCategoryNotFound indicates a referenced category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCategoryAssignmentNotFound indicates the user has no open assignment of the category.
	ErrCategoryAssignmentNotFound = errors.New("category assignment not found")
	// ErrCategoryExists indicates a category with the same code already exists.
	ErrCategoryExists = errors.New("category already exists")
)

// AssignCategoriesCommand replaces the user's current categories. The first id becomes primary.
type AssignCategoriesCommand struct {
	CategoryIDs []string
	// EffectiveFrom defaults to today when zero.
	EffectiveFrom time.Time
}

// CreateCategoryCommand captures a new category definition.
type CreateCategoryCommand struct {
	Code          string
	Name          string
	Description   *string
	PermissionIDs []string
}

// CategoryService manages user categories and their effective-dated assignments.
type CategoryService struct {
	users       port.UserRepository
	categories  port.UserCategoryRepository
	assignments port.CategoryAssignmentRepository
	permissions port.PermissionRepository
	tx          port.TxManager
	cache       port.PermissionCache
	logger      *zap.Logger
	now         func() time.Time
}

// NewCategoryService constructs a CategoryService. cache may be nil.
func NewCategoryService(
	users port.UserRepository,
	categories port.UserCategoryRepository,
	assignments port.CategoryAssignmentRepository,
	permissions port.PermissionRepository,
	tx port.TxManager,
	cache port.PermissionCache,
	logger *zap.Logger,
) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryService{
		users:       users,
		categories:  categories,
		assignments: assignments,
		permissions: permissions,
		tx:          tx,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// AssignCategories writes one assignment per category with the first as the only primary.
func (s *CategoryService) AssignCategories(ctx context.Context, rawUserID string, cmd AssignCategoriesCommand) (domain.CategoryIDs, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return domain.CategoryIDs{}, err
	}
	ids, err := domain.CategoryIDsFromStrings(cmd.CategoryIDs)
	if err != nil {
		return domain.CategoryIDs{}, err
	}
	primary, err := ids.PrimaryID()
	if err != nil {
		return domain.CategoryIDs{}, err
	}

	from := cmd.EffectiveFrom
	if from.IsZero() {
		from = s.now()
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := loadUser(ctx, s.users, userID); err != nil {
			return err
		}
		found, err := s.categories.FindByIDs(ctx, ids.All())
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		if len(found) != ids.Count() {
			return fmt.Errorf("%w: %v", ErrCategoryNotFound, missingCategories(ids, found))
		}
		if err := s.users.AssignCategories(ctx, userID, ids, primary, from); err != nil {
			return fmt.Errorf("assign categories: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.CategoryIDs{}, err
	}

	invalidatePermissions(ctx, s.cache, s.logger, userID)
	s.logger.Info("categories assigned",
		zap.String("user_id", userID.String()),
		zap.String("primary_category_id", primary.String()),
		zap.Int("count", ids.Count()),
	)
	return ids, nil
}

// ExpireCategory ends the user's current assignment of the category on until. The row stays as history.
func (s *CategoryService) ExpireCategory(ctx context.Context, rawUserID, rawCategoryID string, until time.Time) error {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return err
	}
	categoryID, err := domain.ParseUserCategoryID(rawCategoryID)
	if err != nil {
		return err
	}

	history, err := s.assignments.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load category assignments: %w", err)
	}
	var open *domain.CategoryAssignment
	for i := range history {
		if history[i].CategoryID == categoryID && history[i].EffectiveUntil == nil {
			open = &history[i]
			break
		}
	}
	if open == nil {
		return fmt.Errorf("%w: %s", ErrCategoryAssignmentNotFound, categoryID)
	}

	expired, err := open.Expire(until)
	if err != nil {
		return err
	}
	ok, err := s.assignments.Expire(ctx, userID, categoryID, *expired.EffectiveUntil)
	if err != nil {
		return fmt.Errorf("expire category assignment: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCategoryAssignmentNotFound, categoryID)
	}

	invalidatePermissions(ctx, s.cache, s.logger, userID)
	return nil
}

// ActiveCategories lists the user's assignments active on the date of asOf.
func (s *CategoryService) ActiveCategories(ctx context.Context, rawUserID string, asOf time.Time) ([]domain.CategoryAssignment, error) {
	userID, err := domain.ParseUserID(rawUserID)
	if err != nil {
		return nil, err
	}
	history, err := s.assignments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load category assignments: %w", err)
	}
	return domain.ActiveCategoryAssignments(history, asOf), nil
}

// CreateCategory stores a new category granting the given permissions.
func (s *CategoryService) CreateCategory(ctx context.Context, cmd CreateCategoryCommand) (domain.UserCategory, error) {
	permissionIDs, err := domain.PermissionIDsFromStrings(cmd.PermissionIDs)
	if err != nil {
		return domain.UserCategory{}, err
	}
	category, err := domain.NewUserCategory(cmd.Code, cmd.Name, cmd.Description, permissionIDs)
	if err != nil {
		return domain.UserCategory{}, err
	}

	var stored domain.UserCategory
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := ensurePermissionsExist(ctx, s.permissions, permissionIDs); err != nil {
			return err
		}
		saved, err := s.categories.Save(ctx, category)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: %s", ErrCategoryExists, category.Code())
			}
			return fmt.Errorf("save category: %w", err)
		}
		stored = saved
		return nil
	})
	if err != nil {
		return domain.UserCategory{}, err
	}
	return stored, nil
}

func missingCategories(ids domain.CategoryIDs, found []domain.UserCategory) []string {
	present := make(map[domain.UserCategoryID]struct{}, len(found))
	for _, category := range found {
		present[category.ID()] = struct{}{}
	}
	missing := make([]string, 0)
	for _, id := range ids.All() {
		if _, ok := present[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	return missing
}

func ensurePermissionsExist(ctx context.Context, permissions port.PermissionRepository, ids domain.PermissionIDs) error {
	if ids.IsEmpty() {
		return nil
	}
	found, err := permissions.FindByIDs(ctx, ids.All())
	if err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	if len(found) == ids.Count() {
		return nil
	}
	present := make(map[domain.PermissionID]struct{}, len(found))
	for _, permission := range found {
		present[permission.ID()] = struct{}{}
	}
	for _, id := range ids.All() {
		if _, ok := present[id]; !ok {
			return fmt.Errorf("%w: %s", ErrPermissionNotFound, id)
		}
	}
	return nil
}
