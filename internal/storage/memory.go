package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/driftline/backend/internal/models"
)

// MemoryIdentityStore is the in-memory IdentityStore used by tests and local
// development. It honors the same CAS contract as the Mongo store, which is
// what lets the concurrency invariants be exercised without a database.
type MemoryIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]*models.Identity // accountID -> stored copy
	byUsername map[string]string           // lowercased username -> accountID
}

func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		identities: make(map[string]*models.Identity),
		byUsername: make(map[string]string),
	}
}

func (s *MemoryIdentityStore) GetByAccountID(_ context.Context, accountID string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.identities[accountID]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return id.Clone(), nil
}

func (s *MemoryIdentityStore) GetByIdentifier(ctx context.Context, identifier string) (*models.Identity, error) {
	s.mu.RLock()
	accountID, ok := s.byUsername[strings.ToLower(identifier)]
	s.mu.RUnlock()
	if ok {
		return s.GetByAccountID(ctx, accountID)
	}
	return s.GetByAccountID(ctx, identifier)
}

func (s *MemoryIdentityStore) Search(_ context.Context, query string) ([]models.Identity, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Identity
	for _, id := range s.identities {
		if strings.Contains(strings.ToLower(id.Username), q) {
			out = append(out, *id.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	if len(out) > SearchLimit {
		out = out[:SearchLimit]
	}
	return out, nil
}

func (s *MemoryIdentityStore) Create(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lower := strings.ToLower(identity.Username)
	if _, exists := s.byUsername[lower]; exists {
		return ErrUsernameTaken
	}
	if identity.Version == 0 {
		identity.Version = 1
	}
	identity.UsernameLower = lower

	s.identities[identity.AccountID] = identity.Clone()
	s.byUsername[lower] = identity.AccountID
	return nil
}

func (s *MemoryIdentityStore) Update(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.identities[identity.AccountID]
	if !ok {
		return ErrIdentityNotFound
	}
	if current.Version != identity.Version {
		return ErrVersionConflict
	}

	next := identity.Clone()
	next.UsernameLower = strings.ToLower(next.Username)
	next.Version = identity.Version + 1

	if current.UsernameLower != next.UsernameLower {
		delete(s.byUsername, current.UsernameLower)
		s.byUsername[next.UsernameLower] = next.AccountID
	}
	s.identities[identity.AccountID] = next
	identity.Version = next.Version
	return nil
}

// MemorySessionStore mirrors the Redis session store for tests. Expiry is
// checked lazily on Get.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.SessionRecord
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*models.SessionRecord)}
}

func (s *MemorySessionStore) Create(_ context.Context, session *models.SessionRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	copied.ExpiresAt = time.Now().Add(ttl)
	s.sessions[session.Token] = &copied
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, token string) (*models.SessionRecord, error) {
	s.mu.RLock()
	rec, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if time.Now().After(rec.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *MemorySessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

func (s *MemorySessionStore) Extend(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}
	rec.ExpiresAt = time.Now().Add(ttl)
	return nil
}
