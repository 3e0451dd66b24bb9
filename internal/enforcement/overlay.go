// Package enforcement models the client-side blocking overlay as an explicit
// state machine. The server is the only transition source: state changes
// exclusively on a parsed identity response, never on local events like a
// countdown reaching zero, and any failure while blocked keeps the block in
// force.
package enforcement

import (
	"time"

	"github.com/driftline/backend/internal/models"
)

// State is the overlay's current mode.
type State int

const (
	StateClear State = iota
	StateWarningBlocking
	StateBanBlocking
)

func (s State) String() string {
	switch s {
	case StateWarningBlocking:
		return "warningBlocking"
	case StateBanBlocking:
		return "banBlocking"
	default:
		return "clear"
	}
}

// Blocking reports whether the overlay currently blocks the UI.
func (s State) Blocking() bool {
	return s != StateClear
}

// Overlay tracks the blocking state across identity syncs.
type Overlay struct {
	state      State
	lastFailed bool

	// snapshot of the binding ban, kept for countdown rendering
	activeBan *models.Ban
}

func NewOverlay() *Overlay {
	return &Overlay{state: StateClear}
}

func (o *Overlay) State() State { return o.state }

// LastSyncFailed reports whether the most recent sync attempt failed while
// an inline error should be shown.
func (o *Overlay) LastSyncFailed() bool { return o.lastFailed }

// ActiveBan returns the ban backing a banBlocking state, or nil.
func (o *Overlay) ActiveBan() *models.Ban {
	if o.state != StateBanBlocking {
		return nil
	}
	return o.activeBan
}

// Apply consumes a server-confirmed moderation snapshot and returns the new
// state. A ban always takes precedence over a warning; a warning block only
// clears once the server reports no active warning (there is no optimistic
// dismissal); a nil snapshot is a parse failure and is handled fail-closed.
func (o *Overlay) Apply(snapshot *models.ModerationState) State {
	if snapshot == nil {
		return o.Fail()
	}
	o.lastFailed = false

	switch {
	case snapshot.ActiveBan != nil:
		o.state = StateBanBlocking
		o.activeBan = snapshot.ActiveBan
	case snapshot.ActiveWarning != nil:
		o.state = StateWarningBlocking
		o.activeBan = nil
	default:
		o.state = StateClear
		o.activeBan = nil
	}
	return o.state
}

// Fail records a transport or parse failure. A blocking state stays in
// force; the caller re-renders an inline error instead of dismissing the
// overlay.
func (o *Overlay) Fail() State {
	o.lastFailed = true
	return o.state
}

// CountdownExpired reports whether a timed ban's visible countdown has hit
// zero. It deliberately does not change state: the client must re-fetch
// identity and only a server-confirmed absent ban (produced by lazy expiry)
// clears the block.
func (o *Overlay) CountdownExpired(now time.Time) bool {
	if o.state != StateBanBlocking || o.activeBan == nil || o.activeBan.ExpiresAt == nil {
		return false
	}
	return !o.activeBan.ExpiresAt.After(now)
}
