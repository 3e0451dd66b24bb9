package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/driftline/backend/internal/middleware"
	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/services"
)

type ModerationHandler struct {
	identities *services.IdentityService
	moderation *services.ModerationService
}

func NewModerationHandler(identities *services.IdentityService, moderation *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{identities: identities, moderation: moderation}
}

// Search returns up to 15 identity summaries for moderator lookup.
func (h *ModerationHandler) Search(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetIdentity(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing query"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	matches, err := h.identities.Search(ctx, actor, query)
	if err != nil {
		writeServiceError(w, "Search", err)
		return
	}
	if matches == nil {
		matches = []models.IdentitySummary{}
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(matches))
}

// GetUser returns the target identity with full history. Targets may fetch
// themselves; everyone else needs to outrank the target.
func (h *ModerationHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetIdentity(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
		return
	}

	identifier := chi.URLParam(r, "identifier")
	if identifier == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing identifier"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	identity, moderation, err := h.identities.GetByIdentifier(ctx, actor, identifier)
	if err != nil {
		writeServiceError(w, "GetUser", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.IdentityResponse{
		Identity:   identity,
		Moderation: moderation,
	}))
}

func (h *ModerationHandler) Warn(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetIdentity(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
		return
	}

	var req models.WarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	warning, err := h.moderation.IssueWarning(ctx, actor, req.Target, req.Reason)
	if err != nil {
		writeServiceError(w, "Warn", err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(warning))
}

func (h *ModerationHandler) Ban(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetIdentity(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
		return
	}

	var req models.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ban, err := h.moderation.IssueBan(ctx, actor, req.Target, req.Reason, req.DurationMinutes)
	if err != nil {
		writeServiceError(w, "Ban", err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(ban))
}

func (h *ModerationHandler) LiftBan(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetIdentity(r.Context())
	if actor == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
		return
	}

	var req models.LiftBanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ban, err := h.moderation.LiftBan(ctx, actor, req.Target, req.BanID)
	if err != nil {
		writeServiceError(w, "LiftBan", err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(ban))
}

// AcknowledgeWarning is self-service: the caller acknowledges a warning on
// their own record. Safe to retry.
func (h *ModerationHandler) AcknowledgeWarning(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	if caller == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
		return
	}

	var req models.AcknowledgeWarningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	warning, err := h.moderation.AcknowledgeWarning(ctx, caller, req.WarningID)
	if err != nil {
		writeServiceError(w, "AcknowledgeWarning", err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(warning))
}
