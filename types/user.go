package types

import "time"

// Identity is what the identity provider hands us after a successful
// sign-in: a stable opaque id plus display metadata. Identities are created
// and destroyed entirely by the provider; this system only observes them.
type Identity struct {
	// UID is the provider-issued stable identifier.
	UID string `json:"uid"`

	// Provider names the identity provider ("google", "github", "email").
	Provider string `json:"provider"`

	// DisplayName is the user's display name as reported by the provider.
	DisplayName string `json:"displayName"`

	// Email is the user's email address.
	Email string `json:"email"`

	// AvatarURL is an optional profile image URL.
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// UserProfile is the one-per-identity record this system keeps. It is
// created lazily on the first observed sign-in and never deleted.
type UserProfile struct {
	// UID matches the identity's stable id.
	UID string `json:"uid" db:"id"`

	// Provider names the identity provider that owns the UID.
	Provider string `json:"provider" db:"provider"`

	// DisplayName is the user's display name.
	DisplayName string `json:"displayName" db:"display_name"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// AvatarURL is an optional profile image URL.
	AvatarURL string `json:"avatarUrl,omitempty" db:"avatar_url"`

	// PasswordHash stores the bcrypt hash for email-provider accounts.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// TeamIDs are the ids of the teams the user belongs to.
	TeamIDs []string `json:"teamIds" db:"team_ids"`

	// CreatedAt is the timestamp the profile was first created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasTeam reports whether the profile lists teamID.
func (p UserProfile) HasTeam(teamID string) bool {
	for _, id := range p.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}
