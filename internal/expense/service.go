// Package expense implements owner-scoped expense operations. Each mutation and
// the audit entry describing it are committed in one transaction.
package expense

import (
	"context"
	"fmt"

	"expense-tracker/internal/audit"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"
)

// AuditRecorder appends audit entries through w.
type AuditRecorder interface {
	Record(ctx context.Context, w audit.Writer, actorID int64, action models.AuditAction, expenseID *int64) (*models.AuditLogEntry, error)
}

// NewExpense holds the fields supplied when adding an expense.
type NewExpense struct {
	Amount      float64
	Category    string
	Description string
}

// Service is the expense store.
type Service struct {
	db    *storage.DB
	audit AuditRecorder
}

// NewService creates a Service.
func NewService(db *storage.DB, recorder AuditRecorder) *Service {
	return &Service{db: db, audit: recorder}
}

// Add creates an expense owned by ownerID.
func (s *Service) Add(ctx context.Context, ownerID int64, in NewExpense) (*models.Expense, error) {
	e := &models.Expense{
		Amount:      in.Amount,
		Category:    in.Category,
		Description: in.Description,
		UserID:      ownerID,
	}
	err := s.db.InTx(ctx, func(tx *storage.Tx) error {
		if err := tx.CreateExpense(ctx, e); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, ownerID, models.ActionAdd, &e.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// List returns the expenses of ownerID in insertion order.
func (s *Service) List(ctx context.Context, ownerID int64) ([]models.Expense, error) {
	return s.db.ListExpenses(ctx, ownerID)
}

// Edit applies patch to the expense id of ownerID. It returns storage.ErrNotFound
// when the expense does not exist or belongs to someone else.
func (s *Service) Edit(ctx context.Context, ownerID, id int64, patch models.ExpensePatch) (*models.Expense, error) {
	var updated *models.Expense
	err := s.db.InTx(ctx, func(tx *storage.Tx) error {
		e, err := tx.GetExpense(ctx, ownerID, id)
		if err != nil {
			return fmt.Errorf("edit expense %d: %w", id, err)
		}
		patch.Apply(e)
		if err := tx.UpdateExpense(ctx, e); err != nil {
			return err
		}
		if _, err := s.audit.Record(ctx, tx, ownerID, models.ActionEdit, &e.ID); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the expense id of ownerID, with the same lookup rules as Edit.
func (s *Service) Delete(ctx context.Context, ownerID, id int64) error {
	return s.db.InTx(ctx, func(tx *storage.Tx) error {
		if err := tx.DeleteExpense(ctx, ownerID, id); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, tx, ownerID, models.ActionDelete, &id)
		return err
	})
}
