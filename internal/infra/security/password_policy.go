package security

import (
	"fmt"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/wasipo/harbor-sub000/internal/core/port"
	"github.com/wasipo/harbor-sub000/internal/infra/config"
)

const (
	defaultMinPasswordLength = 8
	// Upper bound keeps a single request from burning argon2 time on megabyte inputs.
	maxPasswordLength = 128
	maxStrengthScore  = 4
)

// Violation codes reported by PasswordPolicy.
const (
	ViolationTooShort = "min_length"
	ViolationTooLong  = "max_length"
	ViolationWeak     = "weak_password"
)

// PolicyViolation describes why a password was rejected.
type PolicyViolation struct {
	Code   string
	Detail string
}

func (v *PolicyViolation) Error() string {
	return v.Detail
}

// PasswordPolicy checks length in runes and, when minScore > 0, a zxcvbn strength score.
type PasswordPolicy struct {
	minLength int
	minScore  int
	// words the strength estimator treats as guessable, e.g. the product name
	dictionary []string
}

// NewPasswordPolicy builds the policy from configuration.
func NewPasswordPolicy(cfg config.PasswordSettings, dictionary ...string) *PasswordPolicy {
	policy := &PasswordPolicy{
		minLength:  cfg.MinLength,
		minScore:   cfg.MinStrength,
		dictionary: append([]string(nil), dictionary...),
	}
	if policy.minLength <= 0 {
		policy.minLength = defaultMinPasswordLength
	}
	if policy.minScore > maxStrengthScore {
		policy.minScore = maxStrengthScore
	}
	return policy
}

func (p *PasswordPolicy) Validate(password string) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	switch n := utf8.RuneCountInString(password); {
	case n < p.minLength:
		return &PolicyViolation{
			Code:   ViolationTooShort,
			Detail: fmt.Sprintf("password must be at least %d characters long", p.minLength),
		}
	case n > maxPasswordLength:
		return &PolicyViolation{
			Code:   ViolationTooLong,
			Detail: fmt.Sprintf("password must be at most %d characters long", maxPasswordLength),
		}
	}

	if p.minScore <= 0 {
		return nil
	}
	if zxcvbn.PasswordStrength(password, p.dictionary).Score < p.minScore {
		return &PolicyViolation{Code: ViolationWeak, Detail: "password is too easy to guess"}
	}
	return nil
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
