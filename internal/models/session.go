package models

import "time"

// SessionRecord binds an opaque token to a snapshot of the identity taken at
// login. The snapshot is revalidated against the canonical identity on every
// privileged request; any divergence invalidates the session.
type SessionRecord struct {
	Token        string    `json:"-"`
	AccountID    string    `json:"account_id"`
	Username     string    `json:"username"`
	DisplayTheme string    `json:"display_theme"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}
