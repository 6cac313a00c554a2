package audit

import (
	"context"
	"fmt"
	"time"

	"expense-tracker/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Writer appends entries. *storage.Tx satisfies it, which is how an entry
// lands in the same transaction as the mutation it describes.
type Writer interface {
	InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error
}

// Recorder stamps and appends audit entries.
type Recorder struct {
	log *zap.Logger
	now func() time.Time
}

// NewRecorder creates a Recorder. A nil logger disables the log mirror.
func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{log: log, now: time.Now}
}

// Record appends one entry for actorID performing action on expenseID.
func (r *Recorder) Record(ctx context.Context, w Writer, actorID int64, action models.AuditAction, expenseID *int64) (*models.AuditLogEntry, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown audit action %q", action)
	}

	entry := &models.AuditLogEntry{
		EventID:   uuid.NewString(),
		Action:    action,
		UserID:    actorID,
		ExpenseID: expenseID,
		Timestamp: r.now().UTC(),
	}
	if err := w.InsertAuditEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("record %s audit entry: %w", action, err)
	}

	fields := []zap.Field{
		zap.String("event_id", entry.EventID),
		zap.String("action", string(action)),
		zap.Int64("user_id", actorID),
	}
	if expenseID != nil {
		fields = append(fields, zap.Int64("expense_id", *expenseID))
	}
	r.log.Info("audit", fields...)

	return entry, nil
}
