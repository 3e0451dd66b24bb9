package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/services"
	"github.com/driftline/backend/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeServiceError maps the error taxonomy onto HTTP statuses. Hierarchy
// denials surface their reason verbatim; the invariant violation carries a
// distinct code so clients can tell it apart from validation failures.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, services.ErrAuthenticationRequired):
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
	case errors.Is(err, services.ErrAuthorizationDenied):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse(err.Error()))
	case errors.Is(err, storage.ErrIdentityNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Identity not found"))
	case errors.Is(err, services.ErrWarningNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Warning not found"))
	case errors.Is(err, services.ErrBanNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Ban not found"))
	case errors.Is(err, services.ErrBanNotActive):
		writeJSON(w, http.StatusConflict, models.NewCodedErrorResponse("ban_not_active", "Ban is not active"))
	case errors.Is(err, services.ErrActiveBanExists):
		writeJSON(w, http.StatusConflict, models.NewCodedErrorResponse("active_ban_exists", "Target already has an active ban"))
	case errors.Is(err, services.ErrConflictRetryExhausted):
		writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Too many concurrent updates, retry"))
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Internal error"))
	}
}
