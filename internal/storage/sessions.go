package storage

import (
	"context"
	"time"

	"expense-tracker/internal/models"
)

// CreateSession stores a new session for a user.
func (db *DB) CreateSession(ctx context.Context, s *models.Session) error {
	if s.LastActivity.IsZero() {
		s.LastActivity = time.Now().UTC()
	}
	_, err := db.exec(ctx,
		"INSERT INTO sessions (token_hash, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		s.TokenHash, s.UserID, s.ExpiresAt.UTC(), s.LastActivity.UTC(),
	)
	return err
}

// GetSession returns the session stored under tokenHash, expired or not.
// Callers decide what expiry means.
func (db *DB) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := db.queryRow(ctx,
		"SELECT token_hash, user_id, expires_at, last_activity FROM sessions WHERE token_hash = ?",
		tokenHash,
	)

	var s models.Session
	if err := row.Scan(&s.TokenHash, &s.UserID, &s.ExpiresAt, &s.LastActivity); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(ctx context.Context, tokenHash string, newExpiresAt time.Time) error {
	res, err := db.exec(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token_hash = ?",
		time.Now().UTC(), newExpiresAt.UTC(), tokenHash,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (db *DB) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := db.exec(ctx, "DELETE FROM sessions WHERE token_hash = ?", tokenHash)
	return err
}

// CleanExpiredSessions removes all expired sessions and reports how many were removed.
func (db *DB) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := db.exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
