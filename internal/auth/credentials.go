package auth

import (
	"context"
	"errors"
	"fmt"

	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
)

var (
	// ErrDuplicateUsername is returned by Register when the username is taken.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrInvalidCredentials is returned by Verify for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidPassword is returned when a password cannot be hashed as given.
	ErrInvalidPassword = errors.New("invalid password")
)

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Credentials registers users and verifies their passwords.
type Credentials struct {
	users     UserStore
	hasher    Hasher
	dummyHash string
}

// NewCredentials creates a credential store. A nil hasher means bcrypt at the default cost.
func NewCredentials(users UserStore, hasher Hasher) (*Credentials, error) {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	// Compared against when the username is unknown, so that case costs a hash too.
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Credentials{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Register creates a user and returns its id.
func (c *Credentials) Register(ctx context.Context, username, password string) (int64, error) {
	existing, err := c.users.GetUserByUsername(ctx, username)
	switch {
	case err == nil && existing != nil:
		return 0, ErrDuplicateUsername
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return 0, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := c.hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	user, err := c.users.CreateUser(ctx, username, hash)
	if err != nil {
		// Lost a race with a concurrent registration.
		if errors.Is(err, storage.ErrDuplicate) {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return user.ID, nil
}

// Verify returns the user when password matches. Unknown users and wrong
// passwords both yield ErrInvalidCredentials.
func (c *Credentials) Verify(ctx context.Context, username, password string) (*models.User, error) {
	user, err := c.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			CheckPassword(password, c.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
