package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/duochat/duochat/internal/platform/errors"
	"github.com/duochat/duochat/internal/services/chat/storage"
)

type fakeDirectory struct {
	users map[int64]storage.User
}

func (f fakeDirectory) PutUser(_ context.Context, user storage.User) (storage.User, error) {
	return user, nil
}

func (f fakeDirectory) GetUser(_ context.Context, userID int64) (storage.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return user, nil
}

func testProvider(t *testing.T, cfg Config) *TokenProvider {
	t.Helper()

	provider, err := NewTokenProvider(cfg, fakeDirectory{users: map[int64]storage.User{
		3: {ID: 3, Username: "ada", Active: true},
		7: {ID: 7, Username: "lin", Active: false},
	}})
	if err != nil {
		t.Fatalf("new token provider: %v", err)
	}
	return provider
}

func TestNewTokenProviderRequiresSecret(t *testing.T) {
	if _, err := NewTokenProvider(Config{}, fakeDirectory{}); err == nil {
		t.Fatal("expected secret error")
	}
}

func TestResolveTokenRoundTrip(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "duochat-test"}
	provider := testProvider(t, cfg)

	token, err := SignToken(cfg, 3, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resolved, err := provider.ResolveToken(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if resolved.UserID != 3 || resolved.Username != "ada" || !resolved.Active {
		t.Fatalf("identity = %+v, want active ada", resolved)
	}
}

func TestResolveTokenCarriesInactiveFlag(t *testing.T) {
	cfg := Config{Secret: "test-secret"}
	provider := testProvider(t, cfg)

	token, err := SignToken(cfg, 7, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resolved, err := provider.ResolveToken(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve token: %v", err)
	}
	if resolved.Active {
		t.Fatal("expected inactive identity")
	}
}

func TestResolveTokenRejectsExpired(t *testing.T) {
	cfg := Config{Secret: "test-secret"}
	provider := testProvider(t, cfg)

	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := SignToken(Config{Secret: "test-secret", Now: past}, 3, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, err = provider.ResolveToken(context.Background(), token)
	if !errors.Is(err, apperrors.New(apperrors.CodeUnauthorized, "")) {
		t.Fatalf("err = %v, want UNAUTHORIZED", err)
	}
}

func TestResolveTokenRejectsWrongSecret(t *testing.T) {
	provider := testProvider(t, Config{Secret: "test-secret"})

	token, err := SignToken(Config{Secret: "other-secret"}, 3, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, err = provider.ResolveToken(context.Background(), token)
	if !errors.Is(err, apperrors.New(apperrors.CodeUnauthorized, "")) {
		t.Fatalf("err = %v, want UNAUTHORIZED", err)
	}
}

func TestResolveTokenRejectsIssuerMismatch(t *testing.T) {
	provider := testProvider(t, Config{Secret: "test-secret", Issuer: "duochat-test"})

	token, err := SignToken(Config{Secret: "test-secret", Issuer: "someone-else"}, 3, time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, err = provider.ResolveToken(context.Background(), token)
	if !errors.Is(err, apperrors.New(apperrors.CodeUnauthorized, "")) {
		t.Fatalf("err = %v, want UNAUTHORIZED", err)
	}
}

func TestResolveUserMissingReturnsUnknownUser(t *testing.T) {
	provider := testProvider(t, Config{Secret: "test-secret"})

	_, err := provider.ResolveUser(context.Background(), 99)
	if !errors.Is(err, apperrors.New(apperrors.CodeUnknownUser, "")) {
		t.Fatalf("err = %v, want UNKNOWN_USER", err)
	}
}

func TestAnonymousSentinel(t *testing.T) {
	if !Anonymous.IsAnonymous() {
		t.Fatal("sentinel must report anonymous")
	}
	if Anonymous.Active {
		t.Fatal("sentinel must be inactive")
	}
	resolved := Identity{UserID: 3, Username: "ada", Active: true}
	if resolved.IsAnonymous() {
		t.Fatal("resolved identity must not report anonymous")
	}
}
