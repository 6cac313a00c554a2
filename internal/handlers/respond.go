package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/session"
	"expense-tracker/internal/storage"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// MessageResponse is the body of most successful requests.
type MessageResponse struct {
	Message string `json:"message"`
	ID      *int64 `json:"id,omitempty"`
	Token   string `json:"token,omitempty"`
}

// errBadRequest marks malformed or incomplete request bodies.
type errBadRequest struct {
	msg     string
	details map[string]string
}

func (e *errBadRequest) Error() string { return e.msg }

// decodeJSON reads a single JSON object from the body into dst and validates it.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return &errBadRequest{msg: "Invalid request"}
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return &errBadRequest{msg: "Request body must only contain a single JSON object"}
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fmt.Sprintf("Field validation failed on '%s' tag", fe.Tag())
			}
			return &errBadRequest{msg: "Validation failed", details: details}
		}
		return &errBadRequest{msg: "Invalid request"}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: msg})
}

// writeError maps err onto a status code and JSON body.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var badReq *errBadRequest
	switch {
	case errors.As(err, &badReq):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: badReq.msg, Details: badReq.details})
	case errors.Is(err, auth.ErrDuplicateUsername):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Username already exists"})
	case errors.Is(err, auth.ErrInvalidPassword):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Password not accepted"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Invalid credentials"})
	case errors.Is(err, session.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "Unauthorized"})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
