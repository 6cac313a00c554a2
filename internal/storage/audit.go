package storage

import (
	"context"
	"database/sql"
	"fmt"

	"expense-tracker/internal/models"
)

// The audit log is append-only: there is no update or delete query for it.

// InsertAuditEntry appends e and sets its ID.
func (c conn) InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error {
	var expenseID sql.NullInt64
	if e.ExpenseID != nil {
		expenseID = sql.NullInt64{Int64: *e.ExpenseID, Valid: true}
	}

	err := c.queryRow(ctx,
		"INSERT INTO audit_log (event_id, action, user_id, expense_id, timestamp) VALUES (?, ?, ?, ?, ?) RETURNING id",
		e.EventID, string(e.Action), e.UserID, expenseID, e.Timestamp,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the entries whose actor is userID, oldest first.
func (c conn) ListAuditEntries(ctx context.Context, userID int64) ([]models.AuditLogEntry, error) {
	rows, err := c.query(ctx,
		"SELECT id, event_id, action, user_id, expense_id, timestamp FROM audit_log WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var (
			e         models.AuditLogEntry
			action    string
			expenseID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.EventID, &action, &e.UserID, &expenseID, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Action = models.AuditAction(action)
		if expenseID.Valid {
			id := expenseID.Int64
			e.ExpenseID = &id
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountAuditEntries counts the entries of userID. An empty action counts all actions.
func (c conn) CountAuditEntries(ctx context.Context, userID int64, action models.AuditAction) (int, error) {
	var count int
	var err error
	if action == "" {
		err = c.queryRow(ctx, "SELECT COUNT(*) FROM audit_log WHERE user_id = ?", userID).Scan(&count)
	} else {
		err = c.queryRow(ctx,
			"SELECT COUNT(*) FROM audit_log WHERE user_id = ? AND action = ?",
			userID, string(action),
		).Scan(&count)
	}
	return count, err
}
