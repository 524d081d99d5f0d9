package domain

import (
	"errors"
	"testing"
)

func TestStrictCollectionRejectsDuplicates(t *testing.T) {
	a, b := NewRoleID(), NewRoleID()

	if _, err := NewRoleIDs(a, b, a); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}

	ids, err := NewRoleIDs(a, b)
	if err != nil {
		t.Fatalf("NewRoleIDs returned error: %v", err)
	}
	if ids.Count() != 2 {
		t.Fatalf("expected count 2, got %d", ids.Count())
	}
}

func TestStrictCollectionFromStringsRejectsDuplicates(t *testing.T) {
	raw := NewPermissionID().String()
	if _, err := PermissionIDsFromStrings([]string{raw, raw}); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
	if _, err := PermissionIDsFromStrings([]string{"not-an-id"}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestCollectionsRejectPaddedIdentifiers(t *testing.T) {
	raw := NewRoleID().String()
	for _, padded := range []string{" " + raw, raw + "\n", "\t" + raw + " "} {
		if _, err := RoleIDsFromStrings([]string{padded}); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("RoleIDsFromStrings(%q): expected ErrInvalidIdentifier, got %v", padded, err)
		}
		if _, err := (RoleIDs{}).Including(padded); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("Including(%q): expected ErrInvalidIdentifier, got %v", padded, err)
		}
	}
}

func TestUniqueSilentKeepsFirstOccurrence(t *testing.T) {
	a, b, c := NewUserID(), NewUserID(), NewUserID()

	ids, err := NewIDCollection(UniqueSilent, b, a, b, c, a)
	if err != nil {
		t.Fatalf("NewIDCollection returned error: %v", err)
	}

	got := ids.All()
	want := []UserID{b, a, c}
	if len(got) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestAllowDuplicatesKeepsEverything(t *testing.T) {
	a := NewUserID()

	ids, err := NewIDCollection(AllowDuplicates, a, a, a)
	if err != nil {
		t.Fatalf("NewIDCollection returned error: %v", err)
	}
	if ids.Count() != 3 {
		t.Fatalf("expected count 3, got %d", ids.Count())
	}

	more, err := ids.With(a)
	if err != nil {
		t.Fatalf("With returned error: %v", err)
	}
	if more.Count() != 4 {
		t.Fatalf("expected count 4, got %d", more.Count())
	}
}

func TestIncludingReturnsNewCollection(t *testing.T) {
	a, b := NewUserCategoryID(), NewUserCategoryID()

	original, err := NewCategoryIDs(a)
	if err != nil {
		t.Fatalf("NewCategoryIDs returned error: %v", err)
	}

	extended, err := original.Including(b.String())
	if err != nil {
		t.Fatalf("Including returned error: %v", err)
	}

	if original.Count() != 1 {
		t.Fatalf("expected original to be unchanged, got count %d", original.Count())
	}
	if extended.Count() != 2 || !extended.Contains(a) || !extended.Contains(b) {
		t.Fatalf("expected extended collection to contain both ids, got %v", extended.Strings())
	}
}

func TestIncludingNothingIsNoop(t *testing.T) {
	original, _ := NewCategoryIDs(NewUserCategoryID(), NewUserCategoryID())

	same, err := original.Including()
	if err != nil {
		t.Fatalf("Including returned error: %v", err)
	}
	if !same.Equal(original.IDCollection) {
		t.Fatalf("expected %v, got %v", original.Strings(), same.Strings())
	}
}

func TestIncludingExistingIdIsUnion(t *testing.T) {
	a := NewRoleID()
	original, _ := NewRoleIDs(a)

	same, err := original.Including(a.String())
	if err != nil {
		t.Fatalf("Including returned error: %v", err)
	}
	if same.Count() != 1 {
		t.Fatalf("expected union to keep a single id, got %d", same.Count())
	}
}

func TestPrimaryIDIsFirstInserted(t *testing.T) {
	a, b, c := NewUserCategoryID(), NewUserCategoryID(), NewUserCategoryID()

	ids, err := CategoryIDsFromStrings([]string{a.String(), b.String(), c.String()})
	if err != nil {
		t.Fatalf("CategoryIDsFromStrings returned error: %v", err)
	}

	primary, err := ids.PrimaryID()
	if err != nil {
		t.Fatalf("PrimaryID returned error: %v", err)
	}
	if primary != a {
		t.Fatalf("expected primary %s, got %s", a, primary)
	}
}

func TestPrimaryIDEmpty(t *testing.T) {
	var ids CategoryIDs
	if _, err := ids.PrimaryID(); !errors.Is(err, ErrNoPrimaryCategory) {
		t.Fatalf("expected ErrNoPrimaryCategory, got %v", err)
	}
	if !ids.IsEmpty() {
		t.Fatal("expected zero value collection to be empty")
	}
}
