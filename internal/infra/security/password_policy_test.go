package security

import (
	"errors"
	"strings"
	"testing"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/wasipo/harbor-sub000/internal/infra/config"
)

func violationCode(t *testing.T, err error) string {
	t.Helper()
	var violation *PolicyViolation
	if !errors.As(err, &violation) {
		t.Fatalf("expected PolicyViolation, got %T (%v)", err, err)
	}
	return violation.Code
}

func TestDefaultPolicyAcceptsEightCharacters(t *testing.T) {
	policy := NewPasswordPolicy(config.PasswordSettings{})

	if err := policy.Validate("secret123"); err != nil {
		t.Fatalf("expected password to pass validation, got %v", err)
	}
	if code := violationCode(t, policy.Validate("short")); code != ViolationTooShort {
		t.Fatalf("expected %s, got %s", ViolationTooShort, code)
	}
	if code := violationCode(t, policy.Validate(strings.Repeat("a", maxPasswordLength+1))); code != ViolationTooLong {
		t.Fatalf("expected %s, got %s", ViolationTooLong, code)
	}
}

func TestPolicyStrengthCheck(t *testing.T) {
	policy := NewPasswordPolicy(config.PasswordSettings{MinLength: 8, MinStrength: 3})

	strong := "C0mplex!Passphrase#2025"
	if strength := zxcvbn.PasswordStrength(strong, nil); strength.Score < 3 {
		t.Fatalf("test password unexpectedly weak: score=%d", strength.Score)
	}
	if err := policy.Validate(strong); err != nil {
		t.Fatalf("expected strong password to pass, got %v", err)
	}
	if code := violationCode(t, policy.Validate("password")); code != ViolationWeak {
		t.Fatalf("expected %s, got %s", ViolationWeak, code)
	}
}

func TestPolicyCountsRunes(t *testing.T) {
	policy := NewPasswordPolicy(config.PasswordSettings{MinLength: 4})

	if err := policy.Validate("ぱすわど"); err != nil {
		t.Fatalf("expected four runes to pass, got %v", err)
	}
	if err := policy.Validate("ぱす"); err == nil {
		t.Fatal("expected two runes to fail")
	}
}

func TestNilPolicy(t *testing.T) {
	var policy *PasswordPolicy
	if err := policy.Validate("anything"); err == nil {
		t.Fatal("expected error from unconfigured policy")
	}
}
