package models

import "time"

// AuditAction names a mutating operation on an expense.
type AuditAction string

const (
	ActionAdd    AuditAction = "add"
	ActionEdit   AuditAction = "edit"
	ActionDelete AuditAction = "delete"
)

// Valid reports whether a is one of the known actions.
func (a AuditAction) Valid() bool {
	switch a {
	case ActionAdd, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// AuditLogEntry is an immutable record of a mutating action.
type AuditLogEntry struct {
	ID        int64       `json:"id"`
	EventID   string      `json:"event_id"`
	Action    AuditAction `json:"action"`
	UserID    int64       `json:"user_id"`
	ExpenseID *int64      `json:"expense_id"`
	Timestamp time.Time   `json:"timestamp"`
}
