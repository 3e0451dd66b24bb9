package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/driftline/backend/internal/models"
	"github.com/driftline/backend/internal/storage"
)

// ErrAuthenticationRequired means there is no usable session: missing,
// expired, or bound to a snapshot that no longer matches the canonical
// identity. Resolved only by logging in again.
var ErrAuthenticationRequired = errors.New("authentication required")

// AuthService issues and validates opaque-token sessions. A session is a
// snapshot of the identity at login; Validate re-fetches the canonical
// identity on every use and kills the session the moment they diverge, so a
// token can never outlive a rename or a recreated account.
type AuthService struct {
	identities storage.IdentityStore
	sessions   storage.SessionStore
	ttl        time.Duration
}

func NewAuthService(identities storage.IdentityStore, sessions storage.SessionStore, ttl time.Duration) *AuthService {
	return &AuthService{identities: identities, sessions: sessions, ttl: ttl}
}

// SessionTTL exposes the configured lifetime for cookie expiry.
func (s *AuthService) SessionTTL() time.Duration {
	return s.ttl
}

// Login verifies credentials and creates a session bound to the identity's
// current username, account id, and theme.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Identity, *models.SessionRecord, error) {
	id, err := s.identities.GetByIdentifier(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token, err := newSessionToken()
	if err != nil {
		return nil, nil, fmt.Errorf("session token: %w", err)
	}
	session := &models.SessionRecord{
		Token:        token,
		AccountID:    id.AccountID,
		Username:     id.Username,
		DisplayTheme: id.DisplayTheme,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session, s.ttl); err != nil {
		return nil, nil, err
	}

	log.Info().Str("account", id.AccountID).Msg("session created")
	return id, session, nil
}

// Logout deletes the session. Repeating it is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Validate resolves the token to its snapshot, re-fetches the canonical
// identity, and enforces the binding: snapshot username and account id must
// both equal the canonical values. Any mismatch deletes the session and
// reports unauthenticated.
func (s *AuthService) Validate(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrAuthenticationRequired
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, ErrAuthenticationRequired
		}
		return nil, err
	}

	canonical, err := s.identities.GetByAccountID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			s.invalidate(ctx, token, session.AccountID, "account gone")
			return nil, ErrAuthenticationRequired
		}
		return nil, err
	}

	if canonical.Username != session.Username || canonical.AccountID != session.AccountID {
		s.invalidate(ctx, token, session.AccountID, "binding mismatch")
		return nil, ErrAuthenticationRequired
	}

	// Sliding expiry: each validated use pushes the TTL out again.
	if err := s.sessions.Extend(ctx, token, s.ttl); err != nil {
		log.Debug().Err(err).Str("account", canonical.AccountID).Msg("session extend failed")
	}
	return canonical, nil
}

func (s *AuthService) invalidate(ctx context.Context, token, accountID, reason string) {
	if err := s.sessions.Delete(ctx, token); err != nil {
		log.Warn().Err(err).Str("account", accountID).Msg("stale session delete failed")
		return
	}
	log.Info().Str("account", accountID).Str("reason", reason).Msg("session invalidated")
}

// newSessionToken returns 32 bytes of crypto/rand entropy, base64url encoded.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
