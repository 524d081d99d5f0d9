package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

const defaultPermissionCacheTTL = 5 * time.Minute

// ErrNotAuthenticated indicates the request carries no authenticated user.
var ErrNotAuthenticated = errors.New("not authenticated")

// CurrentUser identifies the authenticated caller of a request. The zero value is anonymous.
type CurrentUser struct {
	UserID domain.UserID
}

// IsAuthenticated reports whether a user is attached.
func (c CurrentUser) IsAuthenticated() bool { return !c.UserID.IsZero() }

// Dashboard is the read model shown to the signed-in user.
type Dashboard struct {
	User            domain.User
	Roles           []domain.Role
	Categories      []domain.UserCategory
	PrimaryCategory *domain.UserCategory
	Permissions     []domain.Permission
}

// DashboardQueryService assembles the dashboard and the effective permissions of a user.
type DashboardQueryService struct {
	users       port.UserRepository
	roles       port.RoleRepository
	categories  port.UserCategoryRepository
	assignments port.CategoryAssignmentRepository
	permissions port.PermissionRepository
	cache       port.PermissionCache
	cacheTTL    time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardQueryService constructs the query service. cache may be nil; a non-positive ttl uses the default.
func NewDashboardQueryService(
	users port.UserRepository,
	roles port.RoleRepository,
	categories port.UserCategoryRepository,
	assignments port.CategoryAssignmentRepository,
	permissions port.PermissionRepository,
	cache port.PermissionCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DashboardQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultPermissionCacheTTL
	}
	return &DashboardQueryService{
		users:       users,
		roles:       roles,
		categories:  categories,
		assignments: assignments,
		permissions: permissions,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Dashboard loads the current user's roles, active categories and effective permissions.
func (s *DashboardQueryService) Dashboard(ctx context.Context, current CurrentUser) (Dashboard, error) {
	ctx, span := tracer.Start(ctx, "DashboardQueryService.Dashboard")
	defer span.End()

	if !current.IsAuthenticated() {
		return Dashboard{}, ErrNotAuthenticated
	}
	span.SetAttributes(attribute.String("user.id", current.UserID.String()))

	user, err := loadUser(ctx, s.users, current.UserID)
	if err != nil {
		return Dashboard{}, err
	}

	roles, err := s.roles.FindByIDs(ctx, user.RoleIDs().All())
	if err != nil {
		return Dashboard{}, fmt.Errorf("load roles: %w", err)
	}

	active, err := s.activeAssignments(ctx, user.ID())
	if err != nil {
		return Dashboard{}, err
	}
	categories, primary, err := s.loadCategories(ctx, active)
	if err != nil {
		return Dashboard{}, err
	}

	permissions, err := s.cachedPermissions(ctx, user.ID(), func() ([]domain.Permission, error) {
		return s.aggregate(ctx, roles, categories)
	})
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		User:            user,
		Roles:           roles,
		Categories:      categories,
		PrimaryCategory: primary,
		Permissions:     permissions,
	}, nil
}

// EffectivePermissions returns the de-duplicated permissions granted by roles and by categories active today.
func (s *DashboardQueryService) EffectivePermissions(ctx context.Context, userID domain.UserID) ([]domain.Permission, error) {
	return s.cachedPermissions(ctx, userID, func() ([]domain.Permission, error) {
		user, err := loadUser(ctx, s.users, userID)
		if err != nil {
			return nil, err
		}
		roles, err := s.roles.FindByIDs(ctx, user.RoleIDs().All())
		if err != nil {
			return nil, fmt.Errorf("load roles: %w", err)
		}
		active, err := s.activeAssignments(ctx, userID)
		if err != nil {
			return nil, err
		}
		categories, _, err := s.loadCategories(ctx, active)
		if err != nil {
			return nil, err
		}
		return s.aggregate(ctx, roles, categories)
	})
}

// HasPermission reports whether the current user holds the permission key.
// Users that are not active hold no permissions.
func (s *DashboardQueryService) HasPermission(ctx context.Context, current CurrentUser, key string) (bool, error) {
	if !current.IsAuthenticated() {
		return false, ErrNotAuthenticated
	}
	user, err := loadUser(ctx, s.users, current.UserID)
	if err != nil {
		return false, err
	}
	if !user.IsActive() {
		return false, nil
	}
	permissions, err := s.EffectivePermissions(ctx, current.UserID)
	if err != nil {
		return false, err
	}
	for _, permission := range permissions {
		if permission.Key().String() == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *DashboardQueryService) activeAssignments(ctx context.Context, userID domain.UserID) ([]domain.CategoryAssignment, error) {
	assignments, err := s.assignments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load category assignments: %w", err)
	}
	return domain.ActiveCategoryAssignments(assignments, s.now()), nil
}

// loadCategories resolves active assignments to categories in assignment order.
func (s *DashboardQueryService) loadCategories(ctx context.Context, active []domain.CategoryAssignment) ([]domain.UserCategory, *domain.UserCategory, error) {
	ids := make([]domain.UserCategoryID, 0, len(active))
	var primaryID domain.UserCategoryID
	for _, assignment := range active {
		ids = append(ids, assignment.CategoryID)
		if assignment.IsPrimary && primaryID.IsZero() {
			primaryID = assignment.CategoryID
		}
	}

	unique, err := domain.NewIDCollection(domain.UniqueSilent, ids...)
	if err != nil {
		return nil, nil, err
	}
	categories, err := s.categories.FindByIDs(ctx, unique.All())
	if err != nil {
		return nil, nil, fmt.Errorf("load categories: %w", err)
	}

	var primary *domain.UserCategory
	for i := range categories {
		if categories[i].ID() == primaryID {
			primary = &categories[i]
			break
		}
	}
	return categories, primary, nil
}

// aggregate merges role permissions ahead of category permissions so a role-derived entry wins on duplicate ids.
func (s *DashboardQueryService) aggregate(ctx context.Context, roles []domain.Role, categories []domain.UserCategory) ([]domain.Permission, error) {
	roleIDs := make([]domain.PermissionID, 0)
	for _, role := range roles {
		roleIDs = append(roleIDs, role.PermissionIDs().All()...)
	}
	categoryIDs := make([]domain.PermissionID, 0)
	for _, category := range categories {
		categoryIDs = append(categoryIDs, category.PermissionIDs().All()...)
	}

	fromRoles, err := s.findPermissions(ctx, roleIDs)
	if err != nil {
		return nil, err
	}
	fromCategories, err := s.findPermissions(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}
	return domain.MergePermissions(fromRoles, fromCategories), nil
}

func (s *DashboardQueryService) findPermissions(ctx context.Context, ids []domain.PermissionID) ([]domain.Permission, error) {
	unique, err := domain.NewIDCollection(domain.UniqueSilent, ids...)
	if err != nil {
		return nil, err
	}
	if unique.IsEmpty() {
		return []domain.Permission{}, nil
	}
	permissions, err := s.permissions.FindByIDs(ctx, unique.All())
	if err != nil {
		return nil, fmt.Errorf("load permissions: %w", err)
	}
	return permissions, nil
}

// cachedPermissions reads through the permission cache. Cache errors are logged and never fail the request.
func (s *DashboardQueryService) cachedPermissions(ctx context.Context, userID domain.UserID, load func() ([]domain.Permission, error)) ([]domain.Permission, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		switch {
		case err == nil:
			return cached, nil
		case !errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("read permission cache failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	permissions, err := load()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, userID, permissions, s.cacheTTL); err != nil {
			s.logger.Warn("write permission cache failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return permissions, nil
}
