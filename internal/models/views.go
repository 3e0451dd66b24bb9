package models

// ModerationState is the sanitized moderation payload attached to identity
// responses. ActiveWarning/ActiveBan are derived by the resolver, never read
// straight from the cache pointers.
type ModerationState struct {
	ActiveWarning *Warning  `json:"active_warning"`
	ActiveBan     *Ban      `json:"active_ban"`
	Warnings      []Warning `json:"warnings"`
	Bans          []Ban     `json:"bans"`
}

// IdentitySummary is the compact row returned by moderator search.
type IdentitySummary struct {
	AccountID       string  `json:"account_id"`
	Username        string  `json:"username"`
	Role            Role    `json:"role"`
	ActiveWarningID *string `json:"active_warning_id"`
	ActiveBanID     *string `json:"active_ban_id"`
}

// Summary projects the identity into its search row.
func (id *Identity) Summary() IdentitySummary {
	return IdentitySummary{
		AccountID:       id.AccountID,
		Username:        id.Username,
		Role:            id.Role,
		ActiveWarningID: id.Cache.ActiveWarningID,
		ActiveBanID:     id.Cache.ActiveBanID,
	}
}

// IdentityResponse is the body of GET /api/identity/self and the moderator
// user lookup.
type IdentityResponse struct {
	Identity   *Identity        `json:"identity"`
	Moderation *ModerationState `json:"moderation"`
}
