package storage

import (
	"context"
	"fmt"

	"expense-tracker/internal/models"
)

// CreateUser creates a new user with the given username and password hash.
// It returns ErrDuplicate when the username is taken.
func (c conn) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	var id int64
	err := c.queryRow(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?, ?) RETURNING id",
		username, passwordHash,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %q: %w", username, ErrDuplicate)
		}
		return nil, err
	}

	return c.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (c conn) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := c.queryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?",
		id,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by username. Usernames are case-sensitive.
func (c conn) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := c.queryRow(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?",
		username,
	)

	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// UserCount returns the number of users in the database.
func (c conn) UserCount(ctx context.Context) (int, error) {
	var count int
	err := c.queryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}
