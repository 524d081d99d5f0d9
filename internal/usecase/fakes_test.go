package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

// memStore is an in-memory stand-in for the PostgreSQL schema shared by the fake repositories.
type memStore struct {
	now func() time.Time

	users               map[domain.UserID]memUser
	roles               map[domain.RoleID]domain.Role
	permissions         map[domain.PermissionID]domain.Permission
	categories          map[domain.UserCategoryID]domain.UserCategory
	roleAssignments     []domain.RoleAssignment
	categoryAssignments []domain.CategoryAssignment

	writes int
}

type memUser struct {
	user domain.User
	hash string
}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		now:         func() time.Time { return now },
		users:       map[domain.UserID]memUser{},
		roles:       map[domain.RoleID]domain.Role{},
		permissions: map[domain.PermissionID]domain.Permission{},
		categories:  map[domain.UserCategoryID]domain.UserCategory{},
	}
}

func (s *memStore) addUser(user domain.User, hash string) {
	s.users[user.ID()] = memUser{user: user, hash: hash}
}

func (s *memStore) addRole(role domain.Role) { s.roles[role.ID()] = role }

func (s *memStore) addPermission(permission domain.Permission) {
	s.permissions[permission.ID()] = permission
}

func (s *memStore) addCategory(category domain.UserCategory) {
	s.categories[category.ID()] = category
}

func (s *memStore) rolesOf(userID domain.UserID) []domain.RoleAssignment {
	var out []domain.RoleAssignment
	for _, a := range s.roleAssignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) hydrate(user domain.User) domain.User {
	snapshot := user.Snapshot()

	roleIDs := make([]domain.RoleID, 0)
	for _, a := range s.rolesOf(user.ID()) {
		roleIDs = append(roleIDs, a.RoleID)
	}
	snapshot.RoleIDs, _ = domain.NewRoleIDs(roleIDs...)

	today := domain.DateOf(s.now())
	current := make([]domain.CategoryAssignment, 0)
	for _, a := range s.categoryAssignments {
		if a.UserID == user.ID() && a.ActiveAt(today) {
			current = append(current, a)
		}
	}
	sort.SliceStable(current, func(i, j int) bool { return current[i].IsPrimary && !current[j].IsPrimary })
	categoryIDs := make([]domain.UserCategoryID, 0, len(current))
	for _, a := range current {
		categoryIDs = append(categoryIDs, a.CategoryID)
	}
	unique, _ := domain.NewIDCollection(domain.UniqueSilent, categoryIDs...)
	snapshot.CategoryIDs, _ = domain.NewCategoryIDs(unique.All()...)

	hydrated, _ := domain.ReconstituteUser(snapshot)
	return hydrated
}

type memUserRepository struct {
	s *memStore

	findErr error
}

func (r *memUserRepository) FindByID(_ context.Context, id domain.UserID) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	record, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := r.s.hydrate(record.user)
	return &user, nil
}

func (r *memUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, record := range r.s.users {
		if strings.EqualFold(record.user.Email(), email) {
			user := r.s.hydrate(record.user)
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepository) Add(_ context.Context, user domain.User, plainPassword string) (domain.User, error) {
	for _, record := range r.s.users {
		if strings.EqualFold(record.user.Email(), user.Email()) {
			return domain.User{}, repository.ErrConflict
		}
	}
	r.s.writes++
	r.s.users[user.ID()] = memUser{user: user, hash: "hashed:" + plainPassword}
	return user, nil
}

func (r *memUserRepository) Update(_ context.Context, user domain.User, plainPassword *string) (domain.User, error) {
	record, ok := r.s.users[user.ID()]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	r.s.writes++
	record.user = user
	if plainPassword != nil {
		record.hash = "hashed:" + *plainPassword
	}
	r.s.users[user.ID()] = record
	return user, nil
}

func (r *memUserRepository) Delete(_ context.Context, user domain.User) (bool, error) {
	if _, ok := r.s.users[user.ID()]; !ok {
		return false, nil
	}
	r.s.writes++
	delete(r.s.users, user.ID())
	return true, nil
}

func (r *memUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memUserRepository) PasswordHash(_ context.Context, id domain.UserID) (string, error) {
	record, ok := r.s.users[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return record.hash, nil
}

func (r *memUserRepository) AssignCategories(_ context.Context, id domain.UserID, categoryIDs domain.CategoryIDs, primary domain.UserCategoryID, effectiveFrom time.Time) error {
	from := domain.DateOf(effectiveFrom)
	kept := r.s.categoryAssignments[:0]
	for _, a := range r.s.categoryAssignments {
		if a.UserID == id && a.EffectiveUntil == nil {
			if !a.EffectiveFrom.Before(from) {
				continue
			}
			a, _ = a.Expire(from.AddDate(0, 0, -1))
		}
		kept = append(kept, a)
	}
	r.s.categoryAssignments = kept
	for _, categoryID := range categoryIDs.All() {
		r.s.categoryAssignments = append(r.s.categoryAssignments,
			domain.NewCategoryAssignment(id, categoryID, categoryID == primary, from))
	}
	r.s.writes++
	return nil
}

func (r *memUserRepository) AssignRoles(_ context.Context, id domain.UserID, roleIDs domain.RoleIDs, assignedBy *domain.UserID) error {
	for _, roleID := range roleIDs.All() {
		exists := false
		for _, a := range r.s.roleAssignments {
			if a.UserID == id && a.RoleID == roleID {
				exists = true
				break
			}
		}
		if !exists {
			r.s.roleAssignments = append(r.s.roleAssignments, domain.RoleAssignment{
				UserID: id, RoleID: roleID, AssignedAt: r.s.now(), AssignedBy: assignedBy,
			})
		}
	}
	r.s.writes++
	return nil
}

type memRoleRepository struct {
	s *memStore
}

func (r *memRoleRepository) FindByID(_ context.Context, id domain.RoleID) (*domain.Role, error) {
	role, ok := r.s.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &role, nil
}

func (r *memRoleRepository) FindByIDs(_ context.Context, ids []domain.RoleID) ([]domain.Role, error) {
	out := make([]domain.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := r.s.roles[id]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

func (r *memRoleRepository) FindByName(_ context.Context, name string) (*domain.Role, error) {
	for _, role := range r.s.roles {
		if role.Name() == name {
			found := role
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memRoleRepository) FindAll(_ context.Context) ([]domain.Role, error) {
	out := make([]domain.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (r *memRoleRepository) Save(_ context.Context, role domain.Role) (domain.Role, error) {
	for _, existing := range r.s.roles {
		if existing.Name() == role.Name() && existing.ID() != role.ID() {
			return domain.Role{}, repository.ErrConflict
		}
	}
	r.s.writes++
	r.s.roles[role.ID()] = role
	return role, nil
}

func (r *memRoleRepository) Delete(_ context.Context, role domain.Role) (bool, error) {
	if _, ok := r.s.roles[role.ID()]; !ok {
		return false, nil
	}
	r.s.writes++
	delete(r.s.roles, role.ID())
	kept := r.s.roleAssignments[:0]
	for _, a := range r.s.roleAssignments {
		if a.RoleID != role.ID() {
			kept = append(kept, a)
		}
	}
	r.s.roleAssignments = kept
	return true, nil
}

func (r *memRoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	_, err := r.FindByName(ctx, name)
	return err == nil, nil
}

func (r *memRoleRepository) ExistsByID(_ context.Context, id domain.RoleID) (bool, error) {
	_, ok := r.s.roles[id]
	return ok, nil
}

type memRoleAssignmentRepository struct {
	s *memStore

	insertErr error
}

func (r *memRoleAssignmentRepository) Exists(_ context.Context, userID domain.UserID, roleID domain.RoleID) (bool, error) {
	for _, a := range r.s.roleAssignments {
		if a.UserID == userID && a.RoleID == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRoleAssignmentRepository) Insert(ctx context.Context, assignment domain.RoleAssignment) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	if exists, _ := r.Exists(ctx, assignment.UserID, assignment.RoleID); exists {
		return repository.ErrConflict
	}
	r.s.writes++
	r.s.roleAssignments = append(r.s.roleAssignments, assignment)
	return nil
}

func (r *memRoleAssignmentRepository) Delete(_ context.Context, userID domain.UserID, roleID domain.RoleID) (bool, error) {
	for i, a := range r.s.roleAssignments {
		if a.UserID == userID && a.RoleID == roleID {
			r.s.writes++
			r.s.roleAssignments = append(r.s.roleAssignments[:i], r.s.roleAssignments[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (r *memRoleAssignmentRepository) DeleteAllForUser(_ context.Context, userID domain.UserID) (int, error) {
	kept := r.s.roleAssignments[:0]
	removed := 0
	for _, a := range r.s.roleAssignments {
		if a.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.s.roleAssignments = kept
	if removed > 0 {
		r.s.writes++
	}
	return removed, nil
}

func (r *memRoleAssignmentRepository) ListByUser(_ context.Context, userID domain.UserID) ([]domain.RoleAssignment, error) {
	return r.s.rolesOf(userID), nil
}

func (r *memRoleAssignmentRepository) ListUsersByRole(_ context.Context, roleID domain.RoleID) ([]domain.UserID, error) {
	var holders []domain.UserID
	for _, a := range r.s.roleAssignments {
		if a.RoleID == roleID {
			holders = append(holders, a.UserID)
		}
	}
	return holders, nil
}

type memPermissionRepository struct {
	s *memStore
}

func (r *memPermissionRepository) FindByID(_ context.Context, id domain.PermissionID) (*domain.Permission, error) {
	permission, ok := r.s.permissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &permission, nil
}

func (r *memPermissionRepository) FindByIDs(_ context.Context, ids []domain.PermissionID) ([]domain.Permission, error) {
	out := make([]domain.Permission, 0, len(ids))
	for _, id := range ids {
		if permission, ok := r.s.permissions[id]; ok {
			out = append(out, permission)
		}
	}
	return out, nil
}

func (r *memPermissionRepository) FindByKey(_ context.Context, key string) (*domain.Permission, error) {
	for _, permission := range r.s.permissions {
		if permission.Key().String() == key {
			found := permission
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memPermissionRepository) FindByKeys(ctx context.Context, keys []string) ([]domain.Permission, error) {
	out := make([]domain.Permission, 0, len(keys))
	for _, key := range keys {
		if permission, err := r.FindByKey(ctx, key); err == nil {
			out = append(out, *permission)
		}
	}
	return out, nil
}

func (r *memPermissionRepository) FindByResource(_ context.Context, resource string) ([]domain.Permission, error) {
	out := make([]domain.Permission, 0)
	for _, permission := range r.s.permissions {
		if permission.Resource() == resource {
			out = append(out, permission)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (r *memPermissionRepository) Create(_ context.Context, permission domain.Permission) (domain.Permission, error) {
	r.s.writes++
	r.s.permissions[permission.ID()] = permission
	return permission, nil
}

func (r *memPermissionRepository) All(_ context.Context) ([]domain.Permission, error) {
	out := make([]domain.Permission, 0, len(r.s.permissions))
	for _, permission := range r.s.permissions {
		out = append(out, permission)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (r *memPermissionRepository) ExistsByKey(ctx context.Context, key string) (bool, error) {
	_, err := r.FindByKey(ctx, key)
	return err == nil, nil
}

type memCategoryRepository struct {
	s *memStore
}

func (r *memCategoryRepository) FindByID(_ context.Context, id domain.UserCategoryID) (*domain.UserCategory, error) {
	category, ok := r.s.categories[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &category, nil
}

func (r *memCategoryRepository) FindByIDs(_ context.Context, ids []domain.UserCategoryID) ([]domain.UserCategory, error) {
	out := make([]domain.UserCategory, 0, len(ids))
	for _, id := range ids {
		if category, ok := r.s.categories[id]; ok {
			out = append(out, category)
		}
	}
	return out, nil
}

func (r *memCategoryRepository) Save(_ context.Context, category domain.UserCategory) (domain.UserCategory, error) {
	for _, existing := range r.s.categories {
		if existing.Code() == category.Code() && existing.ID() != category.ID() {
			return domain.UserCategory{}, repository.ErrConflict
		}
	}
	r.s.writes++
	r.s.categories[category.ID()] = category
	return category, nil
}

type memCategoryAssignmentRepository struct {
	s *memStore
}

func (r *memCategoryAssignmentRepository) ListByUser(_ context.Context, userID domain.UserID) ([]domain.CategoryAssignment, error) {
	out := make([]domain.CategoryAssignment, 0)
	for _, a := range r.s.categoryAssignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].IsPrimary && !out[j].IsPrimary })
	return out, nil
}

func (r *memCategoryAssignmentRepository) Expire(_ context.Context, userID domain.UserID, categoryID domain.UserCategoryID, until time.Time) (bool, error) {
	for i, a := range r.s.categoryAssignments {
		if a.UserID == userID && a.CategoryID == categoryID && a.EffectiveUntil == nil {
			expired, err := a.Expire(until)
			if err != nil {
				return false, nil
			}
			r.s.writes++
			r.s.categoryAssignments[i] = expired
			return true, nil
		}
	}
	return false, nil
}

type fakeTxManager struct {
	calls int
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type fakePermissionCache struct {
	entries       map[domain.UserID][]domain.Permission
	getErr        error
	gets          int
	sets          int
	invalidations []domain.UserID
}

func newFakePermissionCache() *fakePermissionCache {
	return &fakePermissionCache{entries: map[domain.UserID][]domain.Permission{}}
}

func (c *fakePermissionCache) Get(_ context.Context, userID domain.UserID) ([]domain.Permission, error) {
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	permissions, ok := c.entries[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return permissions, nil
}

func (c *fakePermissionCache) Set(_ context.Context, userID domain.UserID, permissions []domain.Permission, _ time.Duration) error {
	c.sets++
	c.entries[userID] = permissions
	return nil
}

func (c *fakePermissionCache) Invalidate(_ context.Context, userID domain.UserID) error {
	c.invalidations = append(c.invalidations, userID)
	delete(c.entries, userID)
	return nil
}

type fakeHasher struct{}

func (fakeHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (fakeHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

type fakePolicy struct {
	minLength int
}

func (p fakePolicy) Validate(password string) error {
	if len(password) < p.minLength {
		return errors.New("password too short")
	}
	return nil
}

type fakePublisher struct {
	events []domain.UserRegisteredEvent
	err    error
}

func (p *fakePublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeSessions struct {
	issued []domain.UserID
	claims port.SessionClaims
	err    error
}

func (f *fakeSessions) Issue(_ context.Context, user domain.User) (port.AccessToken, error) {
	f.issued = append(f.issued, user.ID())
	return port.AccessToken{Token: "token-" + user.ID().String(), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeSessions) Parse(_ context.Context, _ string) (port.SessionClaims, error) {
	return f.claims, f.err
}

var (
	_ port.UserRepository               = (*memUserRepository)(nil)
	_ port.RoleRepository               = (*memRoleRepository)(nil)
	_ port.RoleAssignmentRepository     = (*memRoleAssignmentRepository)(nil)
	_ port.PermissionRepository         = (*memPermissionRepository)(nil)
	_ port.UserCategoryRepository       = (*memCategoryRepository)(nil)
	_ port.CategoryAssignmentRepository = (*memCategoryAssignmentRepository)(nil)
	_ port.PermissionCache              = (*fakePermissionCache)(nil)
	_ port.SessionManager               = (*fakeSessions)(nil)
)

func mustUser(name, email string) domain.User {
	user, err := domain.NewUser(name, email)
	if err != nil {
		panic(err)
	}
	return user
}

func mustPermission(key, name string) domain.Permission {
	permission, err := domain.NewPermission(key, name, nil)
	if err != nil {
		panic(err)
	}
	return permission
}

func mustRole(name string, permissions ...domain.Permission) domain.Role {
	ids := make([]domain.PermissionID, 0, len(permissions))
	for _, p := range permissions {
		ids = append(ids, p.ID())
	}
	permissionIDs, err := domain.NewPermissionIDs(ids...)
	if err != nil {
		panic(err)
	}
	role, err := domain.NewRole(name, strings.ToUpper(name[:1])+name[1:], permissionIDs)
	if err != nil {
		panic(err)
	}
	return role
}

func mustCategory(code string, permissions ...domain.Permission) domain.UserCategory {
	ids := make([]domain.PermissionID, 0, len(permissions))
	for _, p := range permissions {
		ids = append(ids, p.ID())
	}
	permissionIDs, err := domain.NewPermissionIDs(ids...)
	if err != nil {
		panic(err)
	}
	category, err := domain.NewUserCategory(code, strings.ToUpper(code), nil, permissionIDs)
	if err != nil {
		panic(err)
	}
	return category
}

func errConflictForTest() error {
	return fmt.Errorf("insert user role: %w", repository.ErrConflict)
}
