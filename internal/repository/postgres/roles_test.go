package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/repository"
)

func TestRoleRepository_FindByIDsKeepsRequestedOrder(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)

	admin, editor, unknown := domain.NewRoleID(), domain.NewRoleID(), domain.NewRoleID()
	view, edit := domain.NewPermissionID(), domain.NewPermissionID()

	mock.ExpectQuery(`SELECT id, name, display_name FROM iam\.roles WHERE id IN \(\$1,\$2,\$3\) ORDER BY name ASC`).
		WithArgs(editor.String(), unknown.String(), admin.String()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "display_name"}).
			AddRow(admin.String(), "admin", "Administrator").
			AddRow(editor.String(), "editor", "Editor"))
	mock.ExpectQuery(`SELECT role_id, permission_id FROM iam\.role_permissions WHERE role_id IN \(\$1,\$2\) ORDER BY role_id ASC, position ASC`).
		WithArgs(admin.String(), editor.String()).
		WillReturnRows(pgxmock.NewRows([]string{"role_id", "permission_id"}).
			AddRow(admin.String(), edit.String()).
			AddRow(admin.String(), view.String()).
			AddRow(editor.String(), view.String()))

	roles, err := repo.FindByIDs(context.Background(), []domain.RoleID{editor, unknown, admin})
	if err != nil {
		t.Fatalf("FindByIDs returned error: %v", err)
	}
	if len(roles) != 2 || roles[0].ID() != editor || roles[1].ID() != admin {
		t.Fatalf("expected [editor admin], got %d roles", len(roles))
	}
	ids := roles[1].PermissionIDs().All()
	if len(ids) != 2 || ids[0] != edit || ids[1] != view {
		t.Fatalf("expected admin permissions in position order, got %v", roles[1].PermissionIDs().Strings())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_FindByIDsEmpty(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)

	roles, err := repo.FindByIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("FindByIDs returned error: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no roles, got %d", len(roles))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}

func TestRoleRepository_SaveRewritesPermissionLinks(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	view, edit := domain.NewPermissionID(), domain.NewPermissionID()
	permissions, err := domain.NewPermissionIDs(edit, view)
	if err != nil {
		t.Fatalf("NewPermissionIDs: %v", err)
	}
	role, err := domain.NewRole("editor", "Editor", permissions)
	if err != nil {
		t.Fatalf("NewRole: %v", err)
	}

	mock.ExpectExec(`INSERT INTO iam\.roles \(id,name,display_name,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5\) ON CONFLICT \(id\) DO UPDATE`).
		WithArgs(role.ID().String(), "editor", "Editor", now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM iam\.role_permissions WHERE role_id = \$1`).
		WithArgs(role.ID().String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO iam\.role_permissions \(role_id,permission_id,position\) VALUES \(\$1,\$2,\$3\),\(\$4,\$5,\$6\)`).
		WithArgs(role.ID().String(), edit.String(), 0, role.ID().String(), view.String(), 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	if _, err := repo.Save(context.Background(), role); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_SaveWithoutPermissionsSkipsLinks(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)
	role, err := domain.NewRole("viewer", "Viewer", domain.PermissionIDs{})
	if err != nil {
		t.Fatalf("NewRole: %v", err)
	}

	mock.ExpectExec(`INSERT INTO iam\.roles`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM iam\.role_permissions`).
		WithArgs(role.ID().String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if _, err := repo.Save(context.Background(), role); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoleRepository_SaveDuplicateName(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)
	role, _ := domain.NewRole("editor", "Editor", domain.PermissionIDs{})

	mock.ExpectExec(`INSERT INTO iam\.roles`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "roles_name_key"})

	if _, err := repo.Save(context.Background(), role); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRoleRepository_Delete(t *testing.T) {
	mock := newMockPool(t)
	repo := NewRoleRepository(mock)
	role, _ := domain.NewRole("editor", "Editor", domain.PermissionIDs{})

	mock.ExpectExec(`DELETE FROM iam\.roles WHERE id = \$1`).
		WithArgs(role.ID().String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM iam\.roles WHERE id = \$1`).
		WithArgs(role.ID().String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	removed, err := repo.Delete(context.Background(), role)
	if err != nil || !removed {
		t.Fatalf("expected role to be removed, got %v, %v", removed, err)
	}
	removed, err = repo.Delete(context.Background(), role)
	if err != nil || removed {
		t.Fatalf("expected second delete to report no row, got %v, %v", removed, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
