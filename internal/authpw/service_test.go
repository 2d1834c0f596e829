package authpw

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"inkwell/api/internal/store"
)

type memoryUserStore struct {
	byEmail map[string]store.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{byEmail: make(map[string]store.User)}
}

func (m *memoryUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	if user, ok := m.byEmail[email]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}

func (m *memoryUserStore) CreateUser(_ context.Context, user store.User) error {
	m.byEmail[user.Email] = user
	return nil
}

func TestSignUpAndSignIn(t *testing.T) {
	svc := NewService(newMemoryUserStore())
	ctx := context.Background()

	user, err := svc.SignUp(ctx, SignUpRequest{
		Email:       "Ada@Example.com",
		Password:    "correct horse",
		DisplayName: "Ada",
	})
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("expected lowercased email, got %s", user.Email)
	}
	if user.PasswordHash == "correct horse" {
		t.Error("password must not be stored in the clear")
	}

	signedIn, err := svc.SignIn(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if signedIn.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, signedIn.ID)
	}
}

func TestSignUp_RejectsShortPassword(t *testing.T) {
	svc := NewService(newMemoryUserStore())
	_, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       "a@b.c",
		Password:    "short",
		DisplayName: "A",
	})
	if err == nil {
		t.Error("expected error for short password")
	}
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	svc := NewService(newMemoryUserStore())
	ctx := context.Background()

	req := SignUpRequest{Email: "a@b.c", Password: "longenough", DisplayName: "A"}
	if _, err := svc.SignUp(ctx, req); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := svc.SignUp(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignIn_SameErrorForMissingUserAndWrongPassword(t *testing.T) {
	svc := NewService(newMemoryUserStore())
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "longenough", DisplayName: "A"}); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	_, missingErr := svc.SignIn(ctx, "nobody@b.c", "longenough")
	_, wrongErr := svc.SignIn(ctx, "a@b.c", "wrong password")

	if !errors.Is(missingErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for both, got %v and %v", missingErr, wrongErr)
	}
}
