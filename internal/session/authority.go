// Package session issues opaque session tokens and resolves them back to users.
//
// Only the SHA-256 of a token is stored, so a leaked sessions table or Redis
// dump cannot be replayed. Sessions roll: a session used during the second half
// of its lifetime is extended by a full duration.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"

	"go.uber.org/zap"
)

// DefaultDuration is how long sessions last (30 days).
const DefaultDuration = 30 * 24 * time.Hour

// ErrUnauthenticated is returned when a token does not identify an active session.
var ErrUnauthenticated = errors.New("unauthenticated")

// Store persists sessions keyed by token hash. Missing sessions are reported as storage.ErrNotFound.
type Store interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	RenewSession(ctx context.Context, tokenHash string, expiresAt time.Time) error
	DeleteSession(ctx context.Context, tokenHash string) error
}

// UserLookup loads the user a session is bound to.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Resolved is the outcome of a successful Resolve.
type Resolved struct {
	User      *models.User
	ExpiresAt time.Time
	Renewed   bool
}

// Authority starts, resolves and ends sessions.
type Authority struct {
	store    Store
	users    UserLookup
	duration time.Duration
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthority creates an Authority. A zero duration means DefaultDuration.
func NewAuthority(store Store, users UserLookup, duration time.Duration, log *zap.Logger) *Authority {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Authority{store: store, users: users, duration: duration, log: log, now: time.Now}
}

// Duration reports the session lifetime.
func (a *Authority) Duration() time.Duration {
	return a.duration
}

// Start creates a session bound to userID and returns the token for the client.
func (a *Authority) Start(ctx context.Context, userID int64) (string, time.Time, error) {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate session token: %w", err)
	}

	now := a.now().UTC()
	s := &models.Session{
		TokenHash:    auth.HashSessionToken(token),
		UserID:       userID,
		ExpiresAt:    now.Add(a.duration),
		LastActivity: now,
	}
	if err := a.store.CreateSession(ctx, s); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}
	return token, s.ExpiresAt, nil
}

// Resolve returns the user behind token.
func (a *Authority) Resolve(ctx context.Context, token string) (*Resolved, error) {
	if token == "" || auth.ValidateSessionToken(token) != nil {
		return nil, ErrUnauthenticated
	}
	hash := auth.HashSessionToken(token)

	s, err := a.store.GetSession(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	now := a.now().UTC()
	if !s.ExpiresAt.After(now) {
		if err := a.store.DeleteSession(ctx, hash); err != nil {
			a.log.Warn("failed to delete expired session", zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}

	user, err := a.users.GetUserByID(ctx, s.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if err := a.store.DeleteSession(ctx, hash); err != nil {
				a.log.Warn("failed to delete orphaned session", zap.Error(err))
			}
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get session user: %w", err)
	}

	res := &Resolved{User: user, ExpiresAt: s.ExpiresAt}
	if s.ExpiresAt.Sub(now) < a.duration/2 {
		newExpiresAt := now.Add(a.duration)
		if err := a.store.RenewSession(ctx, hash, newExpiresAt); err != nil {
			// The current session is still valid.
			a.log.Warn("failed to renew session", zap.Int64("user_id", user.ID), zap.Error(err))
		} else {
			res.ExpiresAt = newExpiresAt
			res.Renewed = true
		}
	}
	return res, nil
}

// End invalidates token. Ending an unknown or malformed token is a no-op.
func (a *Authority) End(ctx context.Context, token string) error {
	if auth.ValidateSessionToken(token) != nil {
		return nil
	}
	if err := a.store.DeleteSession(ctx, auth.HashSessionToken(token)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
