package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/backend/internal/models"
)

var resolverNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func minutesAgo(m int) time.Time { return resolverNow.Add(-time.Duration(m) * time.Minute) }

func activeBanAt(id, reason string, issuedAt time.Time, expiresAt *time.Time) models.Ban {
	return models.Ban{
		ID:        id,
		Reason:    reason,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Status:    models.BanStatusActive,
	}
}

func TestResolveRepairsMissingBanPointer(t *testing.T) {
	id := &models.Identity{
		AccountID: "u1",
		Bans:      []models.Ban{activeBanAt("b1", "spam", minutesAgo(5), nil)},
	}

	changed := ResolveModeration(id, resolverNow)

	require.True(t, changed)
	require.NotNil(t, id.Cache.ActiveBanID)
	assert.Equal(t, "b1", *id.Cache.ActiveBanID)
	require.NotNil(t, ActiveBan(id))
	assert.Equal(t, "spam", ActiveBan(id).Reason)
}

func TestResolveRejectsStaleBanPointer(t *testing.T) {
	lifted := activeBanAt("b1", "old", minutesAgo(60), nil)
	lifted.Status = models.BanStatusLifted
	stale := "b1"

	id := &models.Identity{
		AccountID: "u1",
		Bans: []models.Ban{
			lifted,
			activeBanAt("b2", "new", minutesAgo(10), nil),
		},
		Cache: models.ModerationCache{ActiveBanID: &stale},
	}

	changed := ResolveModeration(id, resolverNow)

	require.True(t, changed)
	require.NotNil(t, id.Cache.ActiveBanID)
	assert.Equal(t, "b2", *id.Cache.ActiveBanID)
}

func TestResolvePointerToUnknownBanFallsBackToScan(t *testing.T) {
	ghost := "never-existed"
	id := &models.Identity{
		AccountID: "u1",
		Bans:      []models.Ban{activeBanAt("b1", "spam", minutesAgo(5), nil)},
		Cache:     models.ModerationCache{ActiveBanID: &ghost},
	}

	ResolveModeration(id, resolverNow)

	require.NotNil(t, id.Cache.ActiveBanID)
	assert.Equal(t, "b1", *id.Cache.ActiveBanID)
}

func TestResolveTieBreaksByInsertionOrder(t *testing.T) {
	at := minutesAgo(5)
	id := &models.Identity{
		AccountID: "u1",
		Bans: []models.Ban{
			activeBanAt("first", "a", at, nil),
			activeBanAt("second", "b", at, nil),
		},
	}

	ResolveModeration(id, resolverNow)

	require.NotNil(t, id.Cache.ActiveBanID)
	assert.Equal(t, "second", *id.Cache.ActiveBanID, "identical timestamps must resolve to the later insertion")
}

func TestResolveLazilyExpiresTimedBan(t *testing.T) {
	expired := minutesAgo(1)
	ptr := "b1"
	id := &models.Identity{
		AccountID: "u1",
		Bans:      []models.Ban{activeBanAt("b1", "spam", minutesAgo(61), &expired)},
		Cache:     models.ModerationCache{ActiveBanID: &ptr},
	}

	changed := ResolveModeration(id, resolverNow)

	require.True(t, changed)
	assert.Nil(t, id.Cache.ActiveBanID)
	assert.Nil(t, ActiveBan(id))
	assert.Equal(t, models.BanStatusExpired, id.Bans[0].Status)
	require.NotNil(t, id.Bans[0].LiftedAt)
	assert.Equal(t, resolverNow, *id.Bans[0].LiftedAt)
	assert.Nil(t, id.Bans[0].LiftedBy, "clock expiry must not claim a lifter")
}

func TestResolveBanPastExpiryNeverReported(t *testing.T) {
	// P4: expiresAt one second in the past.
	justPast := resolverNow.Add(-time.Second)
	id := &models.Identity{
		AccountID: "u1",
		Bans:      []models.Ban{activeBanAt("b1", "spam", minutesAgo(30), &justPast)},
	}

	ResolveModeration(id, resolverNow)

	assert.Nil(t, ActiveBan(id))
	assert.Equal(t, models.BanStatusExpired, id.Bans[0].Status)
}

func TestResolveSurfacesLatestUnacknowledgedWarning(t *testing.T) {
	older := "w1"
	id := &models.Identity{
		AccountID: "u1",
		Warnings: []models.Warning{
			{ID: "w1", Reason: "first", IssuedAt: minutesAgo(30)},
			{ID: "w2", Reason: "second", IssuedAt: minutesAgo(10)},
		},
		Cache: models.ModerationCache{ActiveWarningID: &older},
	}

	changed := ResolveModeration(id, resolverNow)

	require.True(t, changed)
	require.NotNil(t, id.Cache.ActiveWarningID)
	assert.Equal(t, "w2", *id.Cache.ActiveWarningID, "latest unacknowledged always wins")
}

func TestResolveResurfacesOlderWarningAfterAcknowledge(t *testing.T) {
	ackedAt := minutesAgo(1)
	id := &models.Identity{
		AccountID: "u1",
		Warnings: []models.Warning{
			{ID: "w1", Reason: "first", IssuedAt: minutesAgo(30)},
			{ID: "w2", Reason: "second", IssuedAt: minutesAgo(10), Acknowledged: true, AcknowledgedAt: &ackedAt},
		},
	}

	ResolveModeration(id, resolverNow)

	require.NotNil(t, id.Cache.ActiveWarningID)
	assert.Equal(t, "w1", *id.Cache.ActiveWarningID)
}

func TestResolveClearsWarningPointerWhenAllAcknowledged(t *testing.T) {
	ackedAt := minutesAgo(1)
	stale := "w1"
	id := &models.Identity{
		AccountID: "u1",
		Warnings: []models.Warning{
			{ID: "w1", Reason: "first", IssuedAt: minutesAgo(30), Acknowledged: true, AcknowledgedAt: &ackedAt},
		},
		Cache: models.ModerationCache{ActiveWarningID: &stale},
	}

	changed := ResolveModeration(id, resolverNow)

	require.True(t, changed)
	assert.Nil(t, id.Cache.ActiveWarningID)
	assert.Nil(t, ActiveWarning(id))
}

func TestResolveCleanIdentityUnchanged(t *testing.T) {
	ptr := "b1"
	id := &models.Identity{
		AccountID: "u1",
		Bans:      []models.Ban{activeBanAt("b1", "spam", minutesAgo(5), nil)},
		Cache:     models.ModerationCache{ActiveBanID: &ptr},
	}

	assert.False(t, ResolveModeration(id, resolverNow), "consistent documents must not report repairs")
}

func TestModerationStateNeverNilSlices(t *testing.T) {
	id := &models.Identity{AccountID: "u1"}
	ResolveModeration(id, resolverNow)

	state := ModerationState(id)
	assert.NotNil(t, state.Warnings)
	assert.NotNil(t, state.Bans)
	assert.Nil(t, state.ActiveWarning)
	assert.Nil(t, state.ActiveBan)
}
