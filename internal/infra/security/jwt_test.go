package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testUser(t *testing.T) domain.User {
	t.Helper()
	user, err := domain.NewUser("Taro", "taro@example.com")
	if err != nil {
		t.Fatalf("NewUser returned error: %v", err)
	}
	return user
}

func TestSessionManagerRoundTrip(t *testing.T) {
	manager, err := NewSessionManager(testSecret, "rbac-admin", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager returned error: %v", err)
	}
	user := testUser(t)

	token, err := manager.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if token.Token == "" {
		t.Fatal("expected signed token")
	}

	claims, err := manager.Parse(context.Background(), token.Token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.UserID != user.ID() {
		t.Fatalf("expected user %s, got %s", user.ID(), claims.UserID)
	}
	if !claims.ExpiresAt.Equal(token.ExpiresAt.Truncate(time.Second)) {
		t.Fatalf("expected expiry %s, got %s", token.ExpiresAt, claims.ExpiresAt)
	}
}

func TestSessionManagerRejectsExpiredToken(t *testing.T) {
	manager, err := NewSessionManager(testSecret, "rbac-admin", time.Minute)
	if err != nil {
		t.Fatalf("NewSessionManager returned error: %v", err)
	}
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issuedAt }

	token, err := manager.Issue(context.Background(), testUser(t))
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	manager.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	if _, err := manager.Parse(context.Background(), token.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionManagerRejectsForeignTokens(t *testing.T) {
	manager, err := NewSessionManager(testSecret, "rbac-admin", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager returned error: %v", err)
	}
	other, err := NewSessionManager("another-secret-with-enough-bytes", "rbac-admin", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager returned error: %v", err)
	}
	foreignIssuer, err := NewSessionManager(testSecret, "someone-else", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager returned error: %v", err)
	}
	user := testUser(t)

	for name, issuer := range map[string]*SessionManager{"secret": other, "issuer": foreignIssuer} {
		token, err := issuer.Issue(context.Background(), user)
		if err != nil {
			t.Fatalf("%s: Issue returned error: %v", name, err)
		}
		if _, err := manager.Parse(context.Background(), token.Token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"uid": user.ID().String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}
	if _, err := manager.Parse(context.Background(), unsigned); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for alg none, got %v", err)
	}
}

func TestNewSessionManagerValidation(t *testing.T) {
	if _, err := NewSessionManager("short", "rbac-admin", time.Hour); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewSessionManager(testSecret, " ", time.Hour); err == nil {
		t.Fatal("expected error for blank issuer")
	}
}
