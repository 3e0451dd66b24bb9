package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/driftline/backend/internal/middleware"
	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/services"
	"github.com/driftline/backend/internal/storage"
)

type fixture struct {
	identities *storage.MemoryIdentityStore
	sessions   *storage.MemorySessionStore
	router     http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	identities := storage.NewMemoryIdentityStore()
	sessions := storage.NewMemorySessionStore()
	auth := services.NewAuthService(identities, sessions, time.Hour)
	identitySvc := services.NewIdentityService(identities)
	moderationSvc := services.NewModerationService(identities)

	authHandler := NewAuthHandler(auth, false)
	identityHandler := NewIdentityHandler(identitySvc)
	moderationHandler := NewModerationHandler(identitySvc, moderationSvc)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(auth))
			r.Get("/identity/self", identityHandler.GetSelf)
			r.Route("/moderation", func(r chi.Router) {
				r.Get("/search", moderationHandler.Search)
				r.Get("/user/{identifier}", moderationHandler.GetUser)
				r.Post("/warn", moderationHandler.Warn)
				r.Post("/ban", moderationHandler.Ban)
				r.Post("/lift-ban", moderationHandler.LiftBan)
				r.Post("/acknowledge-warning", moderationHandler.AcknowledgeWarning)
			})
		})
	})

	return &fixture{identities: identities, sessions: sessions, router: r}
}

func (f *fixture) seed(t *testing.T, accountID, username string, role models.Role) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.identities.Create(context.Background(), &models.Identity{
		AccountID:    accountID,
		Username:     username,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}))
}

func (f *fixture) session(t *testing.T, accountID, username string) string {
	t.Helper()
	token := "tok-" + accountID
	require.NoError(t, f.sessions.Create(context.Background(), &models.SessionRecord{
		Token:     token,
		AccountID: accountID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}, time.Hour))
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: token})
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "body: %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func TestLoginSetsCookieAndReturnsModeration(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", "ursula", models.RoleUser)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Username: "ursula", Password: "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.NotEmpty(t, sessionCookie.Value)
	assert.True(t, sessionCookie.HttpOnly)

	var resp models.IdentityResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "u1", resp.Identity.AccountID)
	require.NotNil(t, resp.Moderation)
	assert.Nil(t, resp.Moderation.ActiveBan)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", "ursula", models.RoleUser)

	rec := f.do(t, http.MethodPost, "/api/auth/login", "", models.LoginRequest{Username: "ursula", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIdentitySelfRequiresSession(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/identity/self", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestModerationEndpointsEnforceHierarchy(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", "ursula", models.RoleUser)
	f.seed(t, "m1", "mallory", models.RoleModerator)
	userTok := f.session(t, "u1", "ursula")
	modTok := f.session(t, "m1", "mallory")

	// A plain user may not search, warn, or fetch others.
	rec := f.do(t, http.MethodGet, "/api/moderation/search?query=mal", userTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/moderation/warn", userTok, models.WarnRequest{Target: "m1", Reason: "revenge"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/moderation/user/m1", userTok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Self lookup is always allowed.
	rec = f.do(t, http.MethodGet, "/api/moderation/user/ursula", userTok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The moderator path works end to end.
	rec = f.do(t, http.MethodGet, "/api/moderation/search?query=urs", modTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var matches []models.IdentitySummary
	decodeData(t, rec, &matches)
	require.Len(t, matches, 1)
	assert.Equal(t, "ursula", matches[0].Username)
}

// P6 over HTTP: timed ban, visible to the target, early lift denied below
// headAdmin, then lifted by the headAdmin.
func TestBanLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", "ursula", models.RoleUser)
	f.seed(t, "m1", "mallory", models.RoleModerator)
	f.seed(t, "h1", "harriet", models.RoleHeadAdmin)
	userTok := f.session(t, "u1", "ursula")
	modTok := f.session(t, "m1", "mallory")
	headTok := f.session(t, "h1", "harriet")

	minutes := 60
	rec := f.do(t, http.MethodPost, "/api/moderation/ban", modTok, models.BanRequest{
		Target: "u1", Reason: "spam", DurationMinutes: &minutes,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ban models.Ban
	decodeData(t, rec, &ban)
	assert.Equal(t, "spam", ban.Reason)

	// A second ban while one is active is the invariant violation, with a
	// distinct machine-readable code.
	rec = f.do(t, http.MethodPost, "/api/moderation/ban", modTok, models.BanRequest{
		Target: "u1", Reason: "again", Permanent: true,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var envelope models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "active_ban_exists", envelope.Code)

	// The target sees the ban on identity fetch.
	rec = f.do(t, http.MethodGet, "/api/identity/self", userTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.IdentityResponse
	decodeData(t, rec, &resp)
	require.NotNil(t, resp.Moderation.ActiveBan)
	assert.Equal(t, "spam", resp.Moderation.ActiveBan.Reason)
	assert.Equal(t, models.BanStatusActive, resp.Moderation.ActiveBan.Status)
	require.NotNil(t, resp.Moderation.ActiveBan.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *resp.Moderation.ActiveBan.ExpiresAt, 10*time.Second)

	// Early lift below headAdmin is denied.
	rec = f.do(t, http.MethodPost, "/api/moderation/lift-ban", modTok, models.LiftBanRequest{Target: "u1", BanID: ban.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/moderation/lift-ban", headTok, models.LiftBanRequest{Target: "u1", BanID: ban.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lifted models.Ban
	decodeData(t, rec, &lifted)
	assert.Equal(t, models.BanStatusLifted, lifted.Status)
	require.NotNil(t, lifted.LiftedBy)
	assert.Equal(t, "h1", lifted.LiftedBy.AccountID)
}

// P7 over HTTP: warn, fetch, acknowledge, fetch.
func TestWarningLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", "ursula", models.RoleUser)
	f.seed(t, "a1", "alice", models.RoleAdmin)
	userTok := f.session(t, "u1", "ursula")
	adminTok := f.session(t, "a1", "alice")

	rec := f.do(t, http.MethodPost, "/api/moderation/warn", adminTok, models.WarnRequest{Target: "u1", Reason: "harassment"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/identity/self", userTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.IdentityResponse
	decodeData(t, rec, &resp)
	require.NotNil(t, resp.Moderation.ActiveWarning)
	assert.Equal(t, "harassment", resp.Moderation.ActiveWarning.Reason)
	assert.False(t, resp.Moderation.ActiveWarning.Acknowledged)

	rec = f.do(t, http.MethodPost, "/api/moderation/acknowledge-warning", userTok, models.AcknowledgeWarningRequest{
		WarningID: resp.Moderation.ActiveWarning.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Retrying the acknowledge is a success, not an error.
	rec = f.do(t, http.MethodPost, "/api/moderation/acknowledge-warning", userTok, models.AcknowledgeWarningRequest{
		WarningID: resp.Moderation.ActiveWarning.ID,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/identity/self", userTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &resp)
	assert.Nil(t, resp.Moderation.ActiveWarning)
}

func TestBanValidation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", "mallory", models.RoleModerator)
	modTok := f.session(t, "m1", "mallory")

	tests := []struct {
		name string
		req  models.BanRequest
	}{
		{"missing duration and flag", models.BanRequest{Target: "u1", Reason: "spam"}},
		{"both duration and flag", models.BanRequest{Target: "u1", Reason: "spam", Permanent: true, DurationMinutes: intPtr(5)}},
		{"zero duration", models.BanRequest{Target: "u1", Reason: "spam", DurationMinutes: intPtr(0)}},
		{"missing reason", models.BanRequest{Target: "u1", Permanent: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/moderation/ban", modTok, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUnknownTargetIs404(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "m1", "mallory", models.RoleModerator)
	modTok := f.session(t, "m1", "mallory")

	rec := f.do(t, http.MethodPost, "/api/moderation/warn", modTok, models.WarnRequest{Target: "ghost", Reason: "spam"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/moderation/user/ghost", modTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogoutIdempotentOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "u1", "ursula", models.RoleUser)
	tok := f.session(t, "u1", "ursula")

	rec := f.do(t, http.MethodPost, "/api/auth/logout", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/auth/logout", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/identity/self", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func intPtr(v int) *int { return &v }
