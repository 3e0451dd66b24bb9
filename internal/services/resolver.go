package services

import (
	"time"

	"github.com/driftline/backend/internal/models"
)

// ResolveModeration derives the currently-binding ban and warning for the
// identity, repairing the denormalized cache pointers and lazily expiring
// timed bans. It mutates the document in place and reports whether anything
// changed (so callers know a write-through is worth attempting).
//
// The arrays are the source of truth; the cache is only a hint. Whatever
// state the cache is in — absent, stale, pointing at an acknowledged warning
// or a lifted ban — the result after this call is correct.
func ResolveModeration(id *models.Identity, now time.Time) bool {
	changed := resolveBan(id, now)
	if resolveWarning(id) {
		changed = true
	}
	return changed
}

// ActiveBan returns the binding ban after resolution, or nil.
func ActiveBan(id *models.Identity) *models.Ban {
	if id.Cache.ActiveBanID == nil {
		return nil
	}
	ban := id.BanByID(*id.Cache.ActiveBanID)
	if ban == nil || ban.Status != models.BanStatusActive {
		return nil
	}
	return ban
}

// ActiveWarning returns the surfaced warning after resolution, or nil.
func ActiveWarning(id *models.Identity) *models.Warning {
	if id.Cache.ActiveWarningID == nil {
		return nil
	}
	w := id.WarningByID(*id.Cache.ActiveWarningID)
	if w == nil || w.Acknowledged {
		return nil
	}
	return w
}

// ModerationState builds the sanitized payload attached to identity reads.
// Call ResolveModeration first.
func ModerationState(id *models.Identity) *models.ModerationState {
	state := &models.ModerationState{
		ActiveWarning: ActiveWarning(id),
		ActiveBan:     ActiveBan(id),
		Warnings:      id.Warnings,
		Bans:          id.Bans,
	}
	if state.Warnings == nil {
		state.Warnings = []models.Warning{}
	}
	if state.Bans == nil {
		state.Bans = []models.Ban{}
	}
	return state
}

func resolveBan(id *models.Identity, now time.Time) bool {
	changed := false

	// Validate the cached pointer; fall back to scanning history.
	var ban *models.Ban
	if id.Cache.ActiveBanID != nil {
		ban = id.BanByID(*id.Cache.ActiveBanID)
		if ban != nil && ban.Status != models.BanStatusActive {
			ban = nil
		}
	}
	if ban == nil {
		ban = latestActiveBan(id)
	}

	// Lazy expiry: a timed ban past its deadline stops counting on this
	// read and its stored status flips with it.
	if ban != nil && ban.ExpiresAt != nil && !ban.ExpiresAt.After(now) {
		ban.Status = models.BanStatusExpired
		expiredAt := now
		ban.LiftedAt = &expiredAt
		ban = nil
		changed = true
	}

	if !samePointer(id.Cache.ActiveBanID, ban) {
		id.Cache.ActiveBanID = banID(ban)
		changed = true
	}
	return changed
}

func resolveWarning(id *models.Identity) bool {
	// Latest-issued unacknowledged always wins, even if the cache pointed at
	// an older still-unacknowledged entry or at something stale or missing.
	w := latestUnacknowledgedWarning(id)

	var wantID *string
	if w != nil {
		wantID = &w.ID
	}
	if !sameStringPtr(id.Cache.ActiveWarningID, wantID) {
		id.Cache.ActiveWarningID = wantID
		return true
	}
	return false
}

// latestActiveBan scans for status=active with maximum issued_at; ties go to
// the later array position, which is insertion order for an append-only
// array. Millisecond timestamps make real ties unlikely, but the order must
// be total either way.
func latestActiveBan(id *models.Identity) *models.Ban {
	var best *models.Ban
	for i := range id.Bans {
		b := &id.Bans[i]
		if b.Status != models.BanStatusActive {
			continue
		}
		if best == nil || !b.IssuedAt.Before(best.IssuedAt) {
			best = b
		}
	}
	return best
}

func latestUnacknowledgedWarning(id *models.Identity) *models.Warning {
	var best *models.Warning
	for i := range id.Warnings {
		w := &id.Warnings[i]
		if w.Acknowledged {
			continue
		}
		if best == nil || !w.IssuedAt.Before(best.IssuedAt) {
			best = w
		}
	}
	return best
}

func banID(b *models.Ban) *string {
	if b == nil {
		return nil
	}
	return &b.ID
}

func samePointer(current *string, ban *models.Ban) bool {
	return sameStringPtr(current, banID(ban))
}

func sameStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
