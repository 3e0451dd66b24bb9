package models

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type WarnRequest struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// BanRequest carries either a duration or the permanent flag. A nil
// DurationMinutes with Permanent=false is a validation error rather than an
// implicit permanent ban.
type BanRequest struct {
	Target          string `json:"target"`
	Reason          string `json:"reason"`
	DurationMinutes *int   `json:"duration_minutes,omitempty"`
	Permanent       bool   `json:"permanent,omitempty"`
}

type LiftBanRequest struct {
	Target string `json:"target"`
	BanID  string `json:"ban_id"`
}

type AcknowledgeWarningRequest struct {
	WarningID string `json:"warning_id"`
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Username == "" {
		errors["username"] = "Username is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

func (r *WarnRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Target == "" {
		errors["target"] = "Target is required"
	}
	if r.Reason == "" {
		errors["reason"] = "Reason is required"
	}

	return errors
}

func (r *BanRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Target == "" {
		errors["target"] = "Target is required"
	}
	if r.Reason == "" {
		errors["reason"] = "Reason is required"
	}
	if r.Permanent && r.DurationMinutes != nil {
		errors["duration_minutes"] = "Permanent bans cannot carry a duration"
	}
	if !r.Permanent && r.DurationMinutes == nil {
		errors["duration_minutes"] = "Either duration_minutes or permanent is required"
	}
	if r.DurationMinutes != nil && *r.DurationMinutes <= 0 {
		errors["duration_minutes"] = "Duration must be positive"
	}

	return errors
}

func (r *LiftBanRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Target == "" {
		errors["target"] = "Target is required"
	}
	if r.BanID == "" {
		errors["ban_id"] = "Ban ID is required"
	}

	return errors
}

func (r *AcknowledgeWarningRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.WarningID == "" {
		errors["warning_id"] = "Warning ID is required"
	}

	return errors
}
