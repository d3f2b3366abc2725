package services

import (
	"context"
	"errors"
	"testing"
)

func newAuthEnv(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	return NewAuthService(users, "test-secret", testLogger()), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthEnv(t)

	user, err := svc.Register(context.Background(), "a@b.c", "alice", "password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.PasswordHash == "password123" {
		t.Fatal("password stored in plain text")
	}

	token, logged, err := svc.Login(context.Background(), "a@b.c", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if logged.ID != user.ID {
		t.Errorf("logged in as user %d, want %d", logged.ID, user.ID)
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("token does not parse back: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != user.Role {
		t.Errorf("claims mismatch: %+v", claims)
	}
}

func TestRegisterConflicts(t *testing.T) {
	svc, _ := newAuthEnv(t)
	if _, err := svc.Register(context.Background(), "a@b.c", "alice", "password123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), "a@b.c", "bob", "password123"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "x@y.z", "alice", "password123"); !errors.Is(err, ErrNicknameTaken) {
		t.Fatalf("expected ErrNicknameTaken, got %v", err)
	}
}

func TestRegisterShortPassword(t *testing.T) {
	svc, _ := newAuthEnv(t)
	if _, err := svc.Register(context.Background(), "a@b.c", "alice", "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _ := newAuthEnv(t)
	if _, err := svc.Register(context.Background(), "a@b.c", "alice", "password123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, _, err := svc.Login(context.Background(), "a@b.c", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody@b.c", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthEnv(t)
	if _, err := svc.ParseToken("not-a-jwt"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	other := NewAuthService(newFakeUserRepo(), "other-secret", testLogger())
	if _, err := other.Register(context.Background(), "a@b.c", "alice", "password123"); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	token, _, err := other.Login(context.Background(), "a@b.c", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	// Токен, подписанный другим секретом, не проходит.
	if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("foreign token accepted: %v", err)
	}
}
