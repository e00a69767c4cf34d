package models

import "time"

// FreeTextLimit is the maximum length, in runes, of each free-text field
// on the submission form. Longer input is cut off before storage.
const FreeTextLimit = 1500

// Appeal represents one submitted ban appeal and its review outcome.
// Status is tri-state: nil while the appeal is pending, true once a
// reviewer approves it, false once a reviewer rejects it.
type Appeal struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	DiscordUser        string `json:"discord_user"` // display name at submission time
	DiscordID          int64  `gorm:"uniqueIndex" json:"discord_id"`
	BanReason          string `json:"ban_reason"`
	BanExplanation     string `json:"ban_explanation"`
	UnbanExplanation   string `json:"unban_explanation"`
	AdditionalComments string `json:"additional_comments"`
	Status             *bool  `json:"status"`
	Reviewer           *int64 `json:"reviewer"`
	Timestamp          int64  `json:"timestamp"` // unix seconds, set once at creation
	IPAddress          string `json:"ip_address"`
}

// Reviewer caches the Discord profile of a staff member who decided at
// least one appeal. Display data only, refreshed on every decision.
type Reviewer struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	DiscordID int64  `gorm:"uniqueIndex" json:"discord_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// IsPending reports whether the appeal has not been decided yet.
func (a *Appeal) IsPending() bool {
	return a.Status == nil
}

// IsApproved reports whether a reviewer approved the appeal.
func (a *Appeal) IsApproved() bool {
	return a.Status != nil && *a.Status
}

// IsRejected reports whether a reviewer rejected the appeal.
func (a *Appeal) IsRejected() bool {
	return a.Status != nil && !*a.Status
}

// StatusLabel returns the human-readable lifecycle state for templates.
func (a *Appeal) StatusLabel() string {
	switch {
	case a.Status == nil:
		return "Pending"
	case *a.Status:
		return "Approved"
	default:
		return "Rejected"
	}
}

// ReviewerID returns the deciding reviewer's Discord id, or 0 while the
// appeal is pending.
func (a *Appeal) ReviewerID() int64 {
	if a.Reviewer == nil {
		return 0
	}
	return *a.Reviewer
}

// SubmittedAt converts the creation timestamp to a time.Time.
func (a *Appeal) SubmittedAt() time.Time {
	return time.Unix(a.Timestamp, 0).UTC()
}

// Truncate cuts a free-text form field down to FreeTextLimit runes.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= FreeTextLimit {
		return s
	}
	return string(runes[:FreeTextLimit])
}
