package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

func newRoleFixture(t *testing.T) (*RoleService, *memStore) {
	t.Helper()
	service, store, _ := newRoleFixtureWithCache(t)
	return service, store
}

func newRoleFixtureWithCache(t *testing.T) (*RoleService, *memStore, *fakePermissionCache) {
	t.Helper()
	store := newMemStore(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	cache := newFakePermissionCache()
	service := NewRoleService(
		&memRoleRepository{s: store},
		&memPermissionRepository{s: store},
		&memRoleAssignmentRepository{s: store},
		&fakeTxManager{},
		cache,
		zaptest.NewLogger(t),
	)
	return service, store, cache
}

func TestCreateRoleResolvesPermissionKeys(t *testing.T) {
	service, store := newRoleFixture(t)
	view := mustPermission("users.view", "View users")
	edit := mustPermission("users.edit", "Edit users")
	store.addPermission(view)
	store.addPermission(edit)

	role, err := service.CreateRole(context.Background(), CreateRoleCommand{
		Name:           "editor",
		DisplayName:    "Editor",
		PermissionKeys: []string{"users.edit", "users.view", "users.edit"},
	})
	if err != nil {
		t.Fatalf("CreateRole returned error: %v", err)
	}

	ids := role.PermissionIDs().All()
	if len(ids) != 2 || ids[0] != edit.ID() || ids[1] != view.ID() {
		t.Fatalf("expected [edit view] in key order, got %v", role.PermissionIDs().Strings())
	}
	if _, ok := store.roles[role.ID()]; !ok {
		t.Fatalf("expected role to be stored")
	}
}

func TestCreateRoleRejectsDuplicateName(t *testing.T) {
	service, store := newRoleFixture(t)
	store.addRole(mustRole("editor"))

	_, err := service.CreateRole(context.Background(), CreateRoleCommand{Name: "editor", DisplayName: "Editor"})
	if !errors.Is(err, ErrRoleExists) {
		t.Fatalf("expected ErrRoleExists, got %v", err)
	}
}

func TestCreateRoleUnknownPermission(t *testing.T) {
	service, store := newRoleFixture(t)

	_, err := service.CreateRole(context.Background(), CreateRoleCommand{
		Name:           "editor",
		DisplayName:    "Editor",
		PermissionKeys: []string{"users.purge"},
	})
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got %v", err)
	}
	if store.writes != 0 {
		t.Fatalf("expected no writes, got %d", store.writes)
	}
}

func TestChangeDisplayNameKeepsName(t *testing.T) {
	service, store := newRoleFixture(t)
	role := mustRole("editor")
	store.addRole(role)

	updated, err := service.ChangeDisplayName(context.Background(), role.ID().String(), "Content Editor")
	if err != nil {
		t.Fatalf("ChangeDisplayName returned error: %v", err)
	}
	if updated.Name() != "editor" || updated.DisplayName() != "Content Editor" {
		t.Fatalf("unexpected role after rename: %s / %s", updated.Name(), updated.DisplayName())
	}
}

func TestDeleteRole(t *testing.T) {
	service, store := newRoleFixture(t)
	role := mustRole("editor")
	store.addRole(role)

	if err := service.DeleteRole(context.Background(), role.ID().String()); err != nil {
		t.Fatalf("DeleteRole returned error: %v", err)
	}
	if err := service.DeleteRole(context.Background(), role.ID().String()); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if _, err := service.GetRole(context.Background(), domain.NewRoleID().String()); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestDeleteRoleDropsHolderPermissions(t *testing.T) {
	service, store, cache := newRoleFixtureWithCache(t)
	manage := mustPermission("roles.manage", "Manage roles")
	store.addPermission(manage)
	admin := mustRole("admin", manage)
	store.addRole(admin)
	holder := mustUser("Taro", "taro@example.com")
	store.addUser(holder, "hashed:secret123")
	store.roleAssignments = append(store.roleAssignments, domain.RoleAssignment{
		UserID: holder.ID(), RoleID: admin.ID(), AssignedAt: time.Now(),
	})

	dashboard := NewDashboardQueryService(
		&memUserRepository{s: store},
		&memRoleRepository{s: store},
		&memCategoryRepository{s: store},
		&memCategoryAssignmentRepository{s: store},
		&memPermissionRepository{s: store},
		cache,
		time.Minute,
		zaptest.NewLogger(t),
	)
	current := CurrentUser{UserID: holder.ID()}
	ctx := context.Background()

	if ok, err := dashboard.HasPermission(ctx, current, "roles.manage"); err != nil || !ok {
		t.Fatalf("expected roles.manage before delete, got %v, %v", ok, err)
	}

	if err := service.DeleteRole(ctx, admin.ID().String()); err != nil {
		t.Fatalf("DeleteRole returned error: %v", err)
	}
	if len(cache.invalidations) != 1 || cache.invalidations[0] != holder.ID() {
		t.Fatalf("expected cache invalidation for %s, got %v", holder.ID(), cache.invalidations)
	}
	if len(store.rolesOf(holder.ID())) != 0 {
		t.Fatalf("expected the role's assignments to be removed")
	}

	ok, err := dashboard.HasPermission(ctx, current, "roles.manage")
	if err != nil {
		t.Fatalf("HasPermission returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected roles.manage to be gone after the role was deleted")
	}
}

func TestCreatePermission(t *testing.T) {
	store := newMemStore(time.Now())
	service := NewPermissionService(&memPermissionRepository{s: store})
	ctx := context.Background()

	permission, err := service.CreatePermission(ctx, CreatePermissionCommand{Key: "reports.export.csv", Name: "Export reports"})
	if err != nil {
		t.Fatalf("CreatePermission returned error: %v", err)
	}
	if permission.Resource() != "reports" || permission.Action() != "export.csv" {
		t.Fatalf("expected split on first dot, got %q / %q", permission.Resource(), permission.Action())
	}

	if _, err := service.CreatePermission(ctx, CreatePermissionCommand{Key: "reports.export.csv", Name: "Again"}); !errors.Is(err, ErrPermissionExists) {
		t.Fatalf("expected ErrPermissionExists, got %v", err)
	}
	if _, err := service.CreatePermission(ctx, CreatePermissionCommand{Key: "reports", Name: "No action"}); !errors.Is(err, domain.ErrInvalidPermissionKey) {
		t.Fatalf("expected ErrInvalidPermissionKey, got %v", err)
	}

	byResource, err := service.ListPermissions(ctx, "reports")
	if err != nil || len(byResource) != 1 {
		t.Fatalf("expected one reports permission, got %d (%v)", len(byResource), err)
	}
	if _, err := service.GetPermission(ctx, "users.view"); !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got %v", err)
	}
}
