package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/driftline/backend/internal/middleware"
	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/services"
)

type AuthHandler struct {
	auth         *services.AuthService
	secureCookie bool
}

func NewAuthHandler(auth *services.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookie: secureCookie}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	identity, session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid username or password"))
			return
		}
		log.Error().Err(err).Msg("login failed")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Login failed"))
		return
	}

	http.SetCookie(w, h.sessionCookie(session.Token, h.auth.SessionTTL()))

	now := time.Now().UTC()
	services.ResolveModeration(identity, now)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.IdentityResponse{
		Identity:   identity,
		Moderation: services.ModerationState(identity),
	}))
}

// Logout deletes the session and clears the cookie. Always succeeds; logging
// out twice is fine.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetSessionToken(r.Context())
	if token == "" {
		if c, err := r.Cookie(middleware.SessionCookie); err == nil {
			token = c.Value
		}
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		log.Warn().Err(err).Msg("logout delete failed")
	}

	http.SetCookie(w, h.sessionCookie("", -time.Hour))
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(nil))
}

func (h *AuthHandler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
