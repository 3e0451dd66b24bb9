package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/driftline/backend/internal/middleware"
	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/services"
)

type IdentityHandler struct {
	identities *services.IdentityService
}

func NewIdentityHandler(identities *services.IdentityService) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// GetSelf returns the caller's identity plus full moderation state. This is
// the resolve-and-heal read the enforcement overlay drives off: cache drift
// is repaired and lapsed bans flip to expired as a side effect.
func (h *IdentityHandler) GetSelf(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentity(r.Context())
	if caller == nil {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authentication required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	identity, moderation, err := h.identities.GetResolved(ctx, caller.AccountID)
	if err != nil {
		writeServiceError(w, "GetSelf", err)
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.IdentityResponse{
		Identity:   identity,
		Moderation: moderation,
	}))
}
