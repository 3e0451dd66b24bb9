package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/services"
)

type contextKey string

const (
	identityKey     contextKey = "identity"
	sessionTokenKey contextKey = "sessionToken"
)

// SessionCookie is the cookie carrying the opaque session token.
const SessionCookie = "driftline_session"

// SessionAuth validates the session on every request and stores the
// canonical identity in the context. The snapshot/canonical binding check
// happens inside AuthService.Validate; by the time a handler runs, the
// identity in context is the store's current truth, not the login-time copy.
func SessionAuth(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				unauthorized(w, "Authentication required")
				return
			}

			identity, err := auth.Validate(r.Context(), token)
			if err != nil {
				if err == services.ErrAuthenticationRequired {
					unauthorized(w, "Authentication required")
					return
				}
				writeError(w, http.StatusInternalServerError, "Session validation failed")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, sessionTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity extracts the validated canonical identity from context.
func GetIdentity(ctx context.Context) *models.Identity {
	id, _ := ctx.Value(identityKey).(*models.Identity)
	return id
}

// GetSessionToken extracts the raw session token from context.
func GetSessionToken(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenKey).(string)
	return token
}

// sessionToken reads the session cookie, falling back to a Bearer header for
// non-browser clients.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.NewErrorResponse(message))
}
