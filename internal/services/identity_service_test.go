package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/storage"
)

func TestGetResolvedHealsPersistedCache(t *testing.T) {
	store := storage.NewMemoryIdentityStore()
	svc := NewIdentityService(store)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute)
	id := &models.Identity{
		AccountID: "u1",
		Username:  "ursula",
		Role:      models.RoleUser,
		Bans: []models.Ban{{
			ID:        "b1",
			Reason:    "spam",
			IssuedAt:  past.Add(-time.Hour),
			ExpiresAt: &past,
			Status:    models.BanStatusActive,
		}},
	}
	id.Cache.ActiveBanID = &id.Bans[0].ID
	require.NoError(t, store.Create(ctx, id))

	_, state, err := svc.GetResolved(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, state.ActiveBan)

	// P4 second half: the repair was written through, not just computed.
	persisted, err := store.GetByAccountID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.BanStatusExpired, persisted.Bans[0].Status)
	assert.Nil(t, persisted.Cache.ActiveBanID)
}

func TestGetByIdentifierAuthorization(t *testing.T) {
	store := storage.NewMemoryIdentityStore()
	svc := NewIdentityService(store)
	ctx := context.Background()

	user := seedIdentity(t, store, "u1", "ursula", models.RoleUser)
	seedIdentity(t, store, "u2", "ulrich", models.RoleUser)
	mod := seedIdentity(t, store, "m1", "mallory", models.RoleModerator)

	// Self lookup by username is allowed.
	got, _, err := svc.GetByIdentifier(ctx, user, "Ursula")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.AccountID)

	// Peering at another user requires rank.
	_, _, err = svc.GetByIdentifier(ctx, user, "u2")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	got, _, err = svc.GetByIdentifier(ctx, mod, "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.AccountID)

	_, _, err = svc.GetByIdentifier(ctx, mod, "ghost")
	assert.ErrorIs(t, err, storage.ErrIdentityNotFound)
}

func TestSearchModeratorOnlyAndCapped(t *testing.T) {
	store := storage.NewMemoryIdentityStore()
	svc := NewIdentityService(store)
	ctx := context.Background()

	mod := seedIdentity(t, store, "m1", "mallory", models.RoleModerator)
	user := seedIdentity(t, store, "u0", "plain", models.RoleUser)
	for i := 0; i < 20; i++ {
		seedIdentity(t, store, fmt.Sprintf("u%d", i+1), fmt.Sprintf("wanderer%02d", i), models.RoleUser)
	}

	_, err := svc.Search(ctx, user, "wanderer")
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	matches, err := svc.Search(ctx, mod, "wanderer")
	require.NoError(t, err)
	assert.Len(t, matches, storage.SearchLimit)

	matches, err = svc.Search(ctx, mod, "WANDERER05")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "wanderer05", matches[0].Username)
	assert.Equal(t, models.RoleUser, matches[0].Role)
}
