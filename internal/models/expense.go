package models

import "time"

// Expense represents a financial expense record owned by a single user.
type Expense struct {
	ID          int64     `json:"id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	UserID      int64     `json:"-"`
	CreatedAt   time.Time `json:"-"`
}

// ExpensePatch carries a partial update. Nil fields keep their stored value.
type ExpensePatch struct {
	Amount      *float64
	Category    *string
	Description *string
}

// Apply copies the non-nil fields of p onto e.
func (p ExpensePatch) Apply(e *Expense) {
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
}

// User represents a user account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a server-side session. Only the hash of the client token is kept.
type Session struct {
	TokenHash    string    `json:"-"`
	UserID       int64     `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}
