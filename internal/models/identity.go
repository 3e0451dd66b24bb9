package models

import "time"

// BanStatus is the lifecycle state of a single ban entry.
type BanStatus string

const (
	BanStatusActive  BanStatus = "active"
	BanStatusExpired BanStatus = "expired"
	BanStatusLifted  BanStatus = "lifted"
)

// IssuerRef is a point-in-time snapshot of the account that performed a
// moderation action. It is frozen at issuance so the audit trail survives
// later role changes or renames.
type IssuerRef struct {
	AccountID string `json:"account_id" bson:"account_id"`
	Username  string `json:"username" bson:"username"`
	Role      Role   `json:"role" bson:"role"`
}

// Warning is a single entry in an identity's warning history. Entries are
// append-only; acknowledgement mutates fields but never removes the record.
type Warning struct {
	ID             string     `json:"id" bson:"id"`
	Reason         string     `json:"reason" bson:"reason"`
	IssuedBy       IssuerRef  `json:"issued_by" bson:"issued_by"`
	IssuedAt       time.Time  `json:"issued_at" bson:"issued_at"`
	Acknowledged   bool       `json:"acknowledged" bson:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" bson:"acknowledged_at,omitempty"`
}

// Ban is a single entry in an identity's ban history. ExpiresAt == nil means
// permanent. LiftedBy is set only for manual lifts; clock expiry leaves it
// nil so the two outcomes stay distinguishable.
type Ban struct {
	ID        string     `json:"id" bson:"id"`
	Reason    string     `json:"reason" bson:"reason"`
	IssuedBy  IssuerRef  `json:"issued_by" bson:"issued_by"`
	IssuedAt  time.Time  `json:"issued_at" bson:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	Status    BanStatus  `json:"status" bson:"status"`
	LiftedAt  *time.Time `json:"lifted_at,omitempty" bson:"lifted_at,omitempty"`
	LiftedBy  *IssuerRef `json:"lifted_by,omitempty" bson:"lifted_by,omitempty"`
}

// Permanent reports whether the ban has no natural expiry.
func (b *Ban) Permanent() bool {
	return b.ExpiresAt == nil
}

// ModerationCache is the denormalized active-pointer pair. It is a hint only:
// the warning/ban arrays are the source of truth and the resolver repairs
// this whenever it drifts.
type ModerationCache struct {
	ActiveWarningID *string `json:"-" bson:"active_warning_id,omitempty"`
	ActiveBanID     *string `json:"-" bson:"active_ban_id,omitempty"`
}

// Identity is the durable per-account record. Warnings and Bans are
// append-only audit arrays. Version backs the compare-and-swap update
// contract in storage; every mutation bumps it.
type Identity struct {
	AccountID     string          `json:"account_id" bson:"_id"`
	Username      string          `json:"username" bson:"username"`
	UsernameLower string          `json:"-" bson:"username_lower"`
	DisplayTheme  string          `json:"display_theme" bson:"display_theme"`
	Role          Role            `json:"role" bson:"role"`
	PasswordHash  string          `json:"-" bson:"password_hash"`
	Warnings      []Warning       `json:"-" bson:"warnings"`
	Bans          []Ban           `json:"-" bson:"bans"`
	Cache         ModerationCache `json:"-" bson:"moderation_cache"`
	Version       int64           `json:"-" bson:"version"`
	CreatedAt     time.Time       `json:"created_at" bson:"created_at"`
}

// WarningByID returns a pointer into the Warnings array, or nil.
func (id *Identity) WarningByID(warningID string) *Warning {
	for i := range id.Warnings {
		if id.Warnings[i].ID == warningID {
			return &id.Warnings[i]
		}
	}
	return nil
}

// BanByID returns a pointer into the Bans array, or nil.
func (id *Identity) BanByID(banID string) *Ban {
	for i := range id.Bans {
		if id.Bans[i].ID == banID {
			return &id.Bans[i]
		}
	}
	return nil
}

// Issuer snapshots the identity for embedding in a warning or ban.
func (id *Identity) Issuer() IssuerRef {
	return IssuerRef{AccountID: id.AccountID, Username: id.Username, Role: id.Role}
}

// Clone deep-copies the identity so a read-modify-write attempt can mutate
// freely without corrupting a shared document on a failed swap.
func (id *Identity) Clone() *Identity {
	out := *id
	out.Warnings = make([]Warning, len(id.Warnings))
	copy(out.Warnings, id.Warnings)
	out.Bans = make([]Ban, len(id.Bans))
	copy(out.Bans, id.Bans)
	if id.Cache.ActiveWarningID != nil {
		w := *id.Cache.ActiveWarningID
		out.Cache.ActiveWarningID = &w
	}
	if id.Cache.ActiveBanID != nil {
		b := *id.Cache.ActiveBanID
		out.Cache.ActiveBanID = &b
	}
	return &out
}
