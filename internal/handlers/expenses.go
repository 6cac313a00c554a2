package handlers

import (
	"net/http"

	"expense-tracker/internal/expense"
	"expense-tracker/internal/models"
)

type addExpenseRequest struct {
	Amount      *float64 `json:"amount" validate:"required"`
	Category    *string  `json:"category" validate:"required"`
	Description *string  `json:"description" validate:"required"`
}

type editExpenseRequest struct {
	ID          *int64   `json:"id" validate:"required"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
}

type deleteExpenseRequest struct {
	ID *int64 `json:"id" validate:"required"`
}

// AddExpense creates an expense for the current user.
func (h *Handlers) AddExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req addExpenseRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	e, err := h.expenses.Add(r.Context(), user.ID, expense.NewExpense{
		Amount:      *req.Amount,
		Category:    *req.Category,
		Description: *req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Expense added", ID: &e.ID})
}

// ListExpenses returns the current user's expenses.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	expenses, err := h.expenses.List(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, expenses)
}

// EditExpense applies a partial update to one of the current user's expenses.
func (h *Handlers) EditExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req editExpenseRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	_, err := h.expenses.Edit(r.Context(), user.ID, *req.ID, models.ExpensePatch{
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeMessage(w, "Expense updated")
}

// DeleteExpense removes one of the current user's expenses.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	var req deleteExpenseRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.expenses.Delete(r.Context(), user.ID, *req.ID); err != nil {
		h.writeError(w, r, err)
		return
	}

	writeMessage(w, "Expense deleted")
}
