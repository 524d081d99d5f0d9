package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/wasipo/harbor-sub000/internal/core/domain"
	"github.com/wasipo/harbor-sub000/internal/core/port"
)

func newAuthFixture(t *testing.T) (*AuthService, *memStore, *fakeSessions, domain.User) {
	t.Helper()
	store := newMemStore(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	user := mustUser("Taro", "taro@example.com")
	store.addUser(user, "hashed:secret123")
	sessions := &fakeSessions{}
	service := NewAuthService(&memUserRepository{s: store}, fakeHasher{}, sessions, zaptest.NewLogger(t))
	return service, store, sessions, user
}

func TestLoginIssuesToken(t *testing.T) {
	service, _, sessions, user := newAuthFixture(t)

	result, err := service.Login(context.Background(), LoginCommand{Email: "taro@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.User.ID() != user.ID() {
		t.Fatalf("expected user %s, got %s", user.ID(), result.User.ID())
	}
	if result.Token.Token == "" {
		t.Fatalf("expected access token")
	}
	if len(sessions.issued) != 1 {
		t.Fatalf("expected one token issued, got %d", len(sessions.issued))
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	service, _, sessions, _ := newAuthFixture(t)

	cases := []LoginCommand{
		{Email: "taro@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret123"},
		{Email: "", Password: "secret123"},
		{Email: "taro@example.com", Password: ""},
	}
	for _, cmd := range cases {
		if _, err := service.Login(context.Background(), cmd); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login %q: expected ErrInvalidCredentials, got %v", cmd.Email, err)
		}
	}
	if len(sessions.issued) != 0 {
		t.Fatalf("expected no tokens issued")
	}
}

func TestLoginRejectsSuspendedUser(t *testing.T) {
	service, store, sessions, user := newAuthFixture(t)
	store.addUser(user.Suspend(), "hashed:secret123")

	_, err := service.Login(context.Background(), LoginCommand{Email: "taro@example.com", Password: "secret123"})
	if !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("expected ErrInactiveUser, got %v", err)
	}
	if len(sessions.issued) != 0 {
		t.Fatalf("expected no tokens issued")
	}
}

func TestAuthenticate(t *testing.T) {
	service, _, sessions, user := newAuthFixture(t)
	sessions.claims = port.SessionClaims{UserID: user.ID(), ExpiresAt: time.Now().Add(time.Hour)}

	current, err := service.Authenticate(context.Background(), "token")
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if current.UserID != user.ID() || !current.IsAuthenticated() {
		t.Fatalf("expected current user %s, got %+v", user.ID(), current)
	}

	sessions.err = errors.New("token expired")
	if _, err := service.Authenticate(context.Background(), "token"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "  "); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for blank token, got %v", err)
	}
}

func TestAuthenticateRejectsInactiveOrDeletedUser(t *testing.T) {
	service, store, sessions, user := newAuthFixture(t)
	sessions.claims = port.SessionClaims{UserID: user.ID(), ExpiresAt: time.Now().Add(time.Hour)}

	store.addUser(user.Suspend(), "hashed:secret123")
	_, err := service.Authenticate(context.Background(), "token")
	if !errors.Is(err, ErrNotAuthenticated) || !errors.Is(err, ErrInactiveUser) {
		t.Fatalf("expected ErrNotAuthenticated and ErrInactiveUser, got %v", err)
	}

	delete(store.users, user.ID())
	if _, err := service.Authenticate(context.Background(), "token"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for deleted user, got %v", err)
	}
}

// upgradingHasher accepts "legacy:" hashes and asks for them to be replaced.
type upgradingHasher struct{ fakeHasher }

func (upgradingHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password || encoded == "legacy:"+password, nil
}

func (upgradingHasher) NeedsRehash(encoded string) bool {
	return strings.HasPrefix(encoded, "legacy:")
}

func TestLoginUpgradesOutdatedHash(t *testing.T) {
	store := newMemStore(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	user := mustUser("Taro", "taro@example.com")
	store.addUser(user, "legacy:secret123")
	service := NewAuthService(&memUserRepository{s: store}, upgradingHasher{}, &fakeSessions{}, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		if _, err := service.Login(context.Background(), LoginCommand{Email: "taro@example.com", Password: "secret123"}); err != nil {
			t.Fatalf("Login %d returned error: %v", i, err)
		}
	}
	if got := store.users[user.ID()].hash; got != "hashed:secret123" {
		t.Fatalf("expected upgraded hash, got %q", got)
	}
	if store.writes != 1 {
		t.Fatalf("expected a single rehash write, got %d", store.writes)
	}
}
