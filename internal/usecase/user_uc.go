package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pdf-conversion-billing/internal/domain"
	"pdf-conversion-billing/internal/domain/model"
	"pdf-conversion-billing/internal/domain/ports/adapter"
	"pdf-conversion-billing/internal/domain/ports/repository"
)

// Accounts are optional; anonymous uploads and payments stay supported.
// Registered users get their conversions and payments attributed.

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	// Authenticate returns the user when the credentials match; mismatches
	// and unknown usernames come back indistinguishable.
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	users  repository.UserRepository
	hasher adapter.PasswordHasher
	log    *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, hasher adapter.PasswordHasher, logger *zerolog.Logger) UserUseCase {
	l := logger.With().Str("component", "UserUseCase").Logger()
	return &userUC{users: users, hasher: hasher, log: &l}
}

func (u *userUC) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidArgument)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidArgument)
	}

	if _, err := u.users.FindByUsername(ctx, repository.NoTX, username); err == nil {
		return nil, fmt.Errorf("%w: username %q", domain.ErrAlreadyExists, username)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := u.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	usr := model.NewUser(username, strings.TrimSpace(email), hash)
	if err := u.users.Save(ctx, repository.NoTX, usr); err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", usr.ID).Str("username", usr.Username).Msg("user registered")
	return usr, nil
}

func (u *userUC) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	usr, err := u.users.FindByUsername(ctx, repository.NoTX, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrInvalidArgument)
		}
		return nil, err
	}
	if err := u.hasher.Compare(usr.PasswordHash, password); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrInvalidArgument)
	}
	return usr, nil
}

func (u *userUC) Get(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}
