package models

// Role is the trust level of an account. Levels are totally ordered; anything
// unrecognized collapses to plain user so a bad value can never moderate.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
	RoleHeadAdmin Role = "headAdmin"
)

// Level returns the role's position in the hierarchy (user=0 .. headAdmin=3).
func (r Role) Level() int {
	switch r {
	case RoleModerator:
		return 1
	case RoleAdmin:
		return 2
	case RoleHeadAdmin:
		return 3
	default:
		return 0
	}
}

// IsModerator reports whether the role carries any moderation privileges.
func (r Role) IsModerator() bool {
	return r.Level() >= 1
}

// ParseRole maps a stored string to a known role, defaulting to user.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleModerator, RoleAdmin, RoleHeadAdmin:
		return Role(s)
	default:
		return RoleUser
	}
}

// CanModerate reports whether actor may take moderation action against
// target: never against themselves, and only strictly downward in rank.
func CanModerate(actor, target *Identity) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.AccountID == target.AccountID {
		return false
	}
	return actor.Role.Level() > target.Role.Level()
}
