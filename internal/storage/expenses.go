package storage

import (
	"context"
	"fmt"
	"time"

	"expense-tracker/internal/models"
)

// All expense queries filter on user_id. An id owned by someone else behaves
// exactly like an id that does not exist.

// CreateExpense inserts e and sets its ID and CreatedAt.
func (c conn) CreateExpense(ctx context.Context, e *models.Expense) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	err := c.queryRow(ctx,
		"INSERT INTO expenses (amount, category, description, user_id, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id",
		e.Amount, e.Category, e.Description, e.UserID, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// GetExpense retrieves a single expense by ID and owner.
func (c conn) GetExpense(ctx context.Context, ownerID, id int64) (*models.Expense, error) {
	row := c.queryRow(ctx,
		"SELECT id, amount, category, description, user_id, created_at FROM expenses WHERE id = ? AND user_id = ?",
		id, ownerID,
	)

	var e models.Expense
	if err := row.Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.UserID, &e.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// ListExpenses retrieves every expense of ownerID in insertion order.
func (c conn) ListExpenses(ctx context.Context, ownerID int64) ([]models.Expense, error) {
	rows, err := c.query(ctx,
		"SELECT id, amount, category, description, user_id, created_at FROM expenses WHERE user_id = ? ORDER BY id",
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.UserID, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// UpdateExpense writes the mutable fields of e back to the row owned by e.UserID.
func (c conn) UpdateExpense(ctx context.Context, e *models.Expense) error {
	res, err := c.exec(ctx,
		"UPDATE expenses SET amount = ?, category = ?, description = ? WHERE id = ? AND user_id = ?",
		e.Amount, e.Category, e.Description, e.ID, e.UserID,
	)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return expectOneRow(res)
}

// DeleteExpense removes the expense id owned by ownerID.
func (c conn) DeleteExpense(ctx context.Context, ownerID, id int64) error {
	res, err := c.exec(ctx, "DELETE FROM expenses WHERE id = ? AND user_id = ?", id, ownerID)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return expectOneRow(res)
}

func expectOneRow(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
