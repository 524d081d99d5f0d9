package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewUserDefaults(t *testing.T) {
	user, err := NewUser("Taro", "taro@example.com")
	if err != nil {
		t.Fatalf("NewUser returned error: %v", err)
	}
	if user.Status() != AccountStatusActive {
		t.Fatalf("expected active status, got %s", user.Status())
	}
	if len(user.ID().String()) != 26 {
		t.Fatalf("expected 26 character id, got %q", user.ID().String())
	}
	if !user.RoleIDs().IsEmpty() || !user.CategoryIDs().IsEmpty() {
		t.Fatal("expected new user to hold no roles or categories")
	}
}

func TestNewUserValidation(t *testing.T) {
	if _, err := NewUser("  ", "taro@example.com"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := NewUser(strings.Repeat("a", 256), "taro@example.com"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for long name, got %v", err)
	}
	if _, err := NewUser(strings.Repeat("a", 255), "taro@example.com"); err != nil {
		t.Fatalf("expected 255 character name to be accepted, got %v", err)
	}
	if _, err := NewUser("Taro", "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestUserStatusTransitionsReturnNewValues(t *testing.T) {
	user, _ := NewUser("Taro", "taro@example.com")

	suspended := user.Suspend()
	if suspended.IsActive() {
		t.Fatal("expected suspended user to be inactive")
	}
	if !user.IsActive() {
		t.Fatal("expected original user to remain active")
	}

	deactivated := suspended.Deactivate()
	if deactivated.Status() != AccountStatusInactive {
		t.Fatalf("expected inactive, got %s", deactivated.Status())
	}
	if !deactivated.Activate().IsActive() {
		t.Fatal("expected Activate to restore active status")
	}
}

func TestUserChangeEmailResetsVerification(t *testing.T) {
	user, _ := NewUser("Taro", "taro@example.com")
	verified := user.MarkEmailVerified(time.Now())

	same, err := verified.ChangeEmail("TARO@example.com")
	if err != nil {
		t.Fatalf("ChangeEmail returned error: %v", err)
	}
	if same.EmailVerifiedAt() == nil {
		t.Fatal("expected verification to survive a case-only change")
	}

	changed, err := verified.ChangeEmail("jiro@example.com")
	if err != nil {
		t.Fatalf("ChangeEmail returned error: %v", err)
	}
	if changed.EmailVerifiedAt() != nil {
		t.Fatal("expected verification to reset for a new address")
	}
	if verified.Email() != "taro@example.com" {
		t.Fatalf("expected original email to be unchanged, got %s", verified.Email())
	}
}

func TestUserChangeName(t *testing.T) {
	user, _ := NewUser("Taro", "taro@example.com")
	renamed, err := user.ChangeName("  Jiro ")
	if err != nil {
		t.Fatalf("ChangeName returned error: %v", err)
	}
	if renamed.Name() != "Jiro" || user.Name() != "Taro" {
		t.Fatalf("unexpected names: renamed=%s original=%s", renamed.Name(), user.Name())
	}
	if _, err := user.ChangeName(""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestUserAssignRoleAndCategory(t *testing.T) {
	user, _ := NewUser("Taro", "taro@example.com")
	roleID := NewRoleID()
	first, second := NewUserCategoryID(), NewUserCategoryID()

	withRole, err := user.AssignRole(roleID)
	if err != nil {
		t.Fatalf("AssignRole returned error: %v", err)
	}
	if !withRole.HasRole(roleID) || user.HasRole(roleID) {
		t.Fatal("expected only the new user value to hold the role")
	}

	withCategories, err := user.AssignCategory(first)
	if err != nil {
		t.Fatalf("AssignCategory returned error: %v", err)
	}
	withCategories, err = withCategories.AssignCategory(second)
	if err != nil {
		t.Fatalf("AssignCategory returned error: %v", err)
	}

	primary, err := withCategories.CategoryIDs().PrimaryID()
	if err != nil {
		t.Fatalf("PrimaryID returned error: %v", err)
	}
	if primary != first {
		t.Fatalf("expected first assigned category to be primary")
	}
}

func TestParseAccountStatus(t *testing.T) {
	if status, err := ParseAccountStatus(" Suspended "); err != nil || status != AccountStatusSuspended {
		t.Fatalf("expected suspended, got %s (%v)", status, err)
	}
	if _, err := ParseAccountStatus("deleted"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
