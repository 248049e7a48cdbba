package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/ledger"
	"finance-tracker/internal/service"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated username.
	UserContextKey contextKey = "user"

	maxBodyBytes = 1 << 20
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	svc    *service.Service
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *service.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

// GetUserFromContext retrieves the authenticated username from request context.
func GetUserFromContext(r *http.Request) string {
	if username, ok := r.Context().Value(UserContextKey).(string); ok {
		return username
	}
	return ""
}

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthMiddleware wraps handlers to require a valid bearer token.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, err := h.svc.Authenticate(bearerToken(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Remaining        *float64 `json:"remaining,omitempty"`
}

// internalErrorBody is sent when a response cannot be encoded.
const internalErrorBody = `{"error":"internal_error","error_description":"Internal server error"}`

// writeJSON encodes v before committing status. Encoding failures are sent as 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body = []byte(internalErrorBody)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

// writeError maps err to its status code and error body.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var budgetErr *ledger.BudgetExceededError
	switch {
	case errors.As(err, &budgetErr):
		remaining := budgetErr.Remaining
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:            "budget_exceeded",
			ErrorDescription: budgetErr.Error(),
			Remaining:        &remaining,
		})
	case errors.Is(err, service.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, service.ErrUserExists):
		writeJSONError(w, http.StatusConflict, "user_exists", "Username is already taken")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
	case errors.Is(err, auth.ErrMissingToken):
		writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "Missing bearer token")
	case errors.Is(err, auth.ErrInvalidToken):
		writeJSONError(w, http.StatusForbidden, "forbidden", "Invalid or expired token")
	case errors.Is(err, service.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "Record not found")
	default:
		h.logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// decodeJSON reads the request body into v, reporting a validation error on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: request body must be valid JSON", service.ErrValidation)
	}
	return nil
}

// numberText returns the textual form of a JSON number or string, or "" for
// null and absent values.
func numberText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return s
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
