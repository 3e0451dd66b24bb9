// Package storage holds the durable-state contracts: the identity store with
// its compare-and-swap update discipline, and the TTL-indexed session store.
// Mongo and Redis back them in production; in-memory variants back tests and
// local development.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/driftline/backend/internal/models"
)

var (
	ErrIdentityNotFound = errors.New("identity not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrUsernameTaken    = errors.New("username already taken")

	// ErrVersionConflict means another writer swapped the document between
	// our read and write. Callers reload and retry.
	ErrVersionConflict = errors.New("identity version conflict")
)

// SearchLimit caps moderator search results.
const SearchLimit = 15

// IdentityStore persists identities. Update is a compare-and-swap on the
// document's Version field: it only succeeds against the exact version the
// caller read, and bumps it. That is the whole serialization story for
// per-identity moderation writes.
type IdentityStore interface {
	// GetByAccountID returns the identity or ErrIdentityNotFound.
	GetByAccountID(ctx context.Context, accountID string) (*models.Identity, error)

	// GetByIdentifier resolves an account id or (case-insensitive) username.
	GetByIdentifier(ctx context.Context, identifier string) (*models.Identity, error)

	// Search returns up to SearchLimit identities whose username contains
	// the query, case-insensitively.
	Search(ctx context.Context, query string) ([]models.Identity, error)

	// Create inserts a new identity at version 1, or ErrUsernameTaken.
	Create(ctx context.Context, identity *models.Identity) error

	// Update swaps the full document if the stored version still equals
	// identity.Version, then increments it. Returns ErrVersionConflict if a
	// concurrent writer won, ErrIdentityNotFound if the document vanished.
	Update(ctx context.Context, identity *models.Identity) error
}

// SessionStore persists opaque-token sessions with a TTL. Delete is
// idempotent; a missing token is not an error.
type SessionStore interface {
	Create(ctx context.Context, session *models.SessionRecord, ttl time.Duration) error
	Get(ctx context.Context, token string) (*models.SessionRecord, error)
	Delete(ctx context.Context, token string) error
	Extend(ctx context.Context, token string, ttl time.Duration) error
}
