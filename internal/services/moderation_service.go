package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/storage"
)

// casAttempts bounds the optimistic-retry loop on version conflicts.
const casAttempts = 5

// ModerationService issues and resolves sanctions. Every mutation is a
// read-modify-write against a single identity document: load, re-check
// permissions and invariants on the fresh copy, mutate, CAS update, retry on
// conflict. That serializes racing writers per identity, so two concurrent
// bans can never both observe "no active ban".
type ModerationService struct {
	identities storage.IdentityStore
	now        func() time.Time
}

func NewModerationService(identities storage.IdentityStore) *ModerationService {
	return &ModerationService{identities: identities, now: time.Now}
}

// IssueWarning appends a new warning and surfaces it as the active one.
// The latest-issued warning always supersedes; older unacknowledged entries
// stay in history.
func (s *ModerationService) IssueWarning(ctx context.Context, actor *models.Identity, targetID, reason string) (*models.Warning, error) {
	var issued models.Warning

	err := s.withRetry(ctx, targetID, func(target *models.Identity) error {
		if err := s.requireModeratorOver(actor, target); err != nil {
			return err
		}

		now := s.now().UTC()
		issued = models.Warning{
			ID:       uuid.New().String(),
			Reason:   reason,
			IssuedBy: actor.Issuer(),
			IssuedAt: now,
		}
		target.Warnings = append(target.Warnings, issued)
		target.Cache.ActiveWarningID = &target.Warnings[len(target.Warnings)-1].ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor", actor.AccountID).
		Str("target", targetID).
		Str("warning", issued.ID).
		Msg("warning issued")
	return &issued, nil
}

// AcknowledgeWarning marks the identity's own warning as acknowledged.
// Idempotent: acknowledging an already-acknowledged warning returns its
// current state without error, so client retries are safe.
func (s *ModerationService) AcknowledgeWarning(ctx context.Context, identity *models.Identity, warningID string) (*models.Warning, error) {
	var acked models.Warning

	err := s.withRetry(ctx, identity.AccountID, func(target *models.Identity) error {
		w := target.WarningByID(warningID)
		if w == nil {
			return ErrWarningNotFound
		}
		if w.Acknowledged {
			acked = *w
			return errNoop
		}

		now := s.now().UTC()
		w.Acknowledged = true
		w.AcknowledgedAt = &now
		if target.Cache.ActiveWarningID != nil && *target.Cache.ActiveWarningID == warningID {
			// The resolver re-surfaces any older unacknowledged warning on
			// the next read.
			target.Cache.ActiveWarningID = nil
		}
		acked = *w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acked, nil
}

// IssueBan appends a new ban. durationMinutes == nil means permanent.
// Rejects with ErrActiveBanExists while the target already has an active
// ban; there is no queuing. Resolution runs first so a lapsed timed ban
// cannot block a new one.
func (s *ModerationService) IssueBan(ctx context.Context, actor *models.Identity, targetID, reason string, durationMinutes *int) (*models.Ban, error) {
	var issued models.Ban

	err := s.withRetry(ctx, targetID, func(target *models.Identity) error {
		if err := s.requireModeratorOver(actor, target); err != nil {
			return err
		}

		now := s.now().UTC()
		ResolveModeration(target, now)
		if ActiveBan(target) != nil {
			return ErrActiveBanExists
		}

		var expiresAt *time.Time
		if durationMinutes != nil {
			t := now.Add(time.Duration(*durationMinutes) * time.Minute)
			expiresAt = &t
		}
		issued = models.Ban{
			ID:        uuid.New().String(),
			Reason:    reason,
			IssuedBy:  actor.Issuer(),
			IssuedAt:  now,
			ExpiresAt: expiresAt,
			Status:    models.BanStatusActive,
		}
		target.Bans = append(target.Bans, issued)
		target.Cache.ActiveBanID = &target.Bans[len(target.Bans)-1].ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor", actor.AccountID).
		Str("target", targetID).
		Str("ban", issued.ID).
		Bool("permanent", issued.ExpiresAt == nil).
		Msg("ban issued")
	return &issued, nil
}

// LiftBan manually ends an active ban. Lifting a permanent ban, or any ban
// before its natural expiry, requires headAdmin; ranks below may never
// shorten a running sanction.
func (s *ModerationService) LiftBan(ctx context.Context, actor *models.Identity, targetID, banID string) (*models.Ban, error) {
	var lifted models.Ban

	err := s.withRetry(ctx, targetID, func(target *models.Identity) error {
		if !models.CanModerate(actor, target) {
			return fmt.Errorf("%w: insufficient rank to act on this account", ErrAuthorizationDenied)
		}

		now := s.now().UTC()
		ResolveModeration(target, now)

		ban := target.BanByID(banID)
		if ban == nil {
			return ErrBanNotFound
		}
		if ban.Status != models.BanStatusActive {
			return ErrBanNotActive
		}

		if ban.Permanent() || ban.ExpiresAt.After(now) {
			if actor.Role != models.RoleHeadAdmin {
				return fmt.Errorf("%w: only a head admin may lift a permanent or still-running ban", ErrAuthorizationDenied)
			}
		}

		issuer := actor.Issuer()
		ban.Status = models.BanStatusLifted
		ban.LiftedAt = &now
		ban.LiftedBy = &issuer
		if target.Cache.ActiveBanID != nil && *target.Cache.ActiveBanID == banID {
			target.Cache.ActiveBanID = nil
		}
		lifted = *ban
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("actor", actor.AccountID).
		Str("target", targetID).
		Str("ban", banID).
		Msg("ban lifted")
	return &lifted, nil
}

// errNoop signals that the mutation function found nothing to persist; the
// loop succeeds without writing.
var errNoop = errors.New("no-op")

// withRetry runs the read-modify-write loop: fetch a fresh document, apply
// mutate, CAS update, retry on version conflict. mutate must re-derive all
// of its decisions from the document it is handed, because under contention
// each attempt sees a different one.
func (s *ModerationService) withRetry(ctx context.Context, accountID string, mutate func(*models.Identity) error) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		target, err := s.identities.GetByAccountID(ctx, accountID)
		if err != nil {
			return err
		}

		if err := mutate(target); err != nil {
			if errors.Is(err, errNoop) {
				return nil
			}
			return err
		}

		err = s.identities.Update(ctx, target)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
	}
	return ErrConflictRetryExhausted
}

func (s *ModerationService) requireModeratorOver(actor, target *models.Identity) error {
	if !actor.Role.IsModerator() {
		return fmt.Errorf("%w: moderator rank required", ErrAuthorizationDenied)
	}
	if actor.AccountID == target.AccountID {
		return fmt.Errorf("%w: cannot moderate yourself", ErrAuthorizationDenied)
	}
	if !models.CanModerate(actor, target) {
		return fmt.Errorf("%w: insufficient rank to act on this account", ErrAuthorizationDenied)
	}
	return nil
}
