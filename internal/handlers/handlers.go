package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/expense"
	"expense-tracker/internal/models"
	"expense-tracker/internal/session"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// tokenContextKey holds the session token the request authenticated with.
	tokenContextKey contextKey = "session_token"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	credentials  *auth.Credentials
	sessions     *session.Authority
	expenses     *expense.Service
	validate     *validator.Validate
	log          *zap.Logger
	secureCookie bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(credentials *auth.Credentials, sessions *session.Authority, expenses *expense.Service, log *zap.Logger, secureCookie bool) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		credentials:  credentials,
		sessions:     sessions,
		expenses:     expenses,
		validate:     validator.New(),
		log:          log,
		secureCookie: secureCookie,
	}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

func tokenFromContext(r *http.Request) string {
	token, _ := r.Context().Value(tokenContextKey).(string)
	return token
}

// requestToken returns the session token from the cookie, falling back to a
// bearer Authorization header.
func requestToken(r *http.Request) (token string, fromCookie bool) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1]), false
	}
	return "", false
}

// AuthMiddleware rejects requests without a valid session with 401 and puts
// the session user into the request context. Cookie sessions renewed by the
// authority get a refreshed cookie.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := requestToken(r)

		resolved, err := h.sessions.Resolve(r.Context(), token)
		if err != nil {
			if fromCookie {
				h.clearSessionCookie(w)
			}
			h.writeError(w, r, err)
			return
		}

		if resolved.Renewed && fromCookie {
			h.setSessionCookie(w, token, resolved.ExpiresAt)
		}

		ctx := context.WithValue(r.Context(), UserContextKey, resolved.User)
		ctx = context.WithValue(ctx, tokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates a user account.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.credentials.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.log.Info("user registered", zap.Int64("user_id", id))
	writeMessage(w, "User created")
}

// Login verifies credentials and starts a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.credentials.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	token, expiresAt, err := h.sessions.Start(r.Context(), user.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookie(w, token, expiresAt)
	h.log.Info("user logged in", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged in", Token: token})
}

// Logout ends the current session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), tokenFromContext(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.clearSessionCookie(w)
	writeMessage(w, "Logged out")
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
