//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/usecase"
)

func newUserUC(users *MockUserRepo) usecase.UserUseCase {
	return usecase.NewUserUseCase(users, &MockHasher{}, newTestLogger())
}

func TestUserUseCase_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should store the user with a hashed password", func(t *testing.T) {
		// --- Arrange ---
		users := NewMockUserRepo()
		uc := newUserUC(users)

		// --- Act ---
		usr, err := uc.Register(ctx, "alice", "alice@example.com", "correct horse")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if usr.PasswordHash == "correct horse" {
			t.Error("expected the password to be hashed before storage")
		}
		if usr.ID == "" {
			t.Error("expected an id to be assigned")
		}
	})

	t.Run("should reject duplicate usernames", func(t *testing.T) {
		// --- Arrange ---
		users := NewMockUserRepo()
		uc := newUserUC(users)
		if _, err := uc.Register(ctx, "alice", "", "correct horse"); err != nil {
			t.Fatalf("arrange: %v", err)
		}

		// --- Act ---
		_, err := uc.Register(ctx, "alice", "", "battery staple")

		// --- Assert ---
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got: %v", err)
		}
	})

	t.Run("should reject blank usernames and short passwords", func(t *testing.T) {
		uc := newUserUC(NewMockUserRepo())

		if _, err := uc.Register(ctx, "   ", "", "correct horse"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("blank username: expected ErrInvalidArgument, got: %v", err)
		}
		if _, err := uc.Register(ctx, "bob", "", "short"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("short password: expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestUserUseCase_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("should return the user for matching credentials", func(t *testing.T) {
		// --- Arrange ---
		users := NewMockUserRepo()
		uc := newUserUC(users)
		if _, err := uc.Register(ctx, "alice", "", "correct horse"); err != nil {
			t.Fatalf("arrange: %v", err)
		}

		// --- Act ---
		usr, err := uc.Authenticate(ctx, "alice", "correct horse")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if usr.Username != "alice" {
			t.Errorf("expected alice, got %q", usr.Username)
		}
	})

	t.Run("should answer wrong password and unknown user identically", func(t *testing.T) {
		// --- Arrange ---
		users := NewMockUserRepo()
		uc := newUserUC(users)
		if _, err := uc.Register(ctx, "alice", "", "correct horse"); err != nil {
			t.Fatalf("arrange: %v", err)
		}

		// --- Act ---
		_, wrongPass := uc.Authenticate(ctx, "alice", "battery staple")
		_, unknown := uc.Authenticate(ctx, "mallory", "battery staple")

		// --- Assert ---
		if !errors.Is(wrongPass, domain.ErrInvalidArgument) || !errors.Is(unknown, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for both, got: %v / %v", wrongPass, unknown)
		}
		if wrongPass.Error() != unknown.Error() {
			t.Errorf("expected indistinguishable failures, got %q vs %q", wrongPass, unknown)
		}
	})
}
