package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/storage"
)

// IdentityService serves authenticated identity reads. Every read runs the
// moderation resolver and writes repairs back when possible; a failed
// write-through still returns the logically correct document, since the
// history arrays — not the persisted cache — are authoritative.
type IdentityService struct {
	identities storage.IdentityStore
	now        func() time.Time
}

func NewIdentityService(identities storage.IdentityStore) *IdentityService {
	return &IdentityService{identities: identities, now: time.Now}
}

// GetResolved loads the identity by account id, resolves its moderation
// state, and best-effort persists any repair or expiry transition.
func (s *IdentityService) GetResolved(ctx context.Context, accountID string) (*models.Identity, *models.ModerationState, error) {
	id, err := s.identities.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	resolved := s.resolveAndHeal(ctx, id)
	return resolved, ModerationState(resolved), nil
}

// GetByIdentifier resolves an account id or username the same way, enforcing
// that actor is the target themselves or outranks them.
func (s *IdentityService) GetByIdentifier(ctx context.Context, actor *models.Identity, identifier string) (*models.Identity, *models.ModerationState, error) {
	id, err := s.identities.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, nil, err
	}
	if id.AccountID != actor.AccountID && !models.CanModerate(actor, id) {
		return nil, nil, fmt.Errorf("%w: insufficient rank to view this account", ErrAuthorizationDenied)
	}
	resolved := s.resolveAndHeal(ctx, id)
	return resolved, ModerationState(resolved), nil
}

// Search returns up to the store's limit of summaries for moderator lookup.
func (s *IdentityService) Search(ctx context.Context, actor *models.Identity, query string) ([]models.IdentitySummary, error) {
	if !actor.Role.IsModerator() {
		return nil, fmt.Errorf("%w: moderator rank required", ErrAuthorizationDenied)
	}

	matches, err := s.identities.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]models.IdentitySummary, 0, len(matches))
	for i := range matches {
		out = append(out, matches[i].Summary())
	}
	return out, nil
}

// resolveAndHeal applies the resolver and attempts the write-through. A lost
// CAS race reloads and reapplies; any persistent failure is logged and the
// resolved in-memory document is returned anyway.
func (s *IdentityService) resolveAndHeal(ctx context.Context, id *models.Identity) *models.Identity {
	now := s.now().UTC()
	if !ResolveModeration(id, now) {
		return id
	}

	current := id
	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.identities.Update(ctx, current)
		if err == nil {
			return current
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			log.Warn().Err(err).Str("account", id.AccountID).Msg("moderation cache write-through failed")
			return current
		}

		fresh, err := s.identities.GetByAccountID(ctx, id.AccountID)
		if err != nil {
			log.Warn().Err(err).Str("account", id.AccountID).Msg("moderation cache write-through reload failed")
			return current
		}
		if !ResolveModeration(fresh, now) {
			// The winning writer already left the document consistent.
			return fresh
		}
		current = fresh
	}
	return current
}
