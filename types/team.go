package types

import "time"

// Team roles.
const (
	RoleCaptain = "Captain"
	RoleMember  = "Member"
)

// TeamMember is a denormalized snapshot of a user embedded in a team's
// roster. The snapshot is taken at join time and not kept in sync with the
// member's profile.
type TeamMember struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
	Role        string    `json:"role"`
}

// Team is a group of users sharing problems. A team always has at least
// one member; when the last member leaves, the record is deleted.
type Team struct {
	// ID is the unique identifier of the team.
	ID string `json:"id" db:"id"`

	// Name is the free-text team name.
	Name string `json:"name" db:"name"`

	// Code is the 6-character join code. Not guaranteed globally unique;
	// the collision probability over the 32-character alphabet is accepted.
	Code string `json:"code" db:"code"`

	// Members is the ordered roster. The creating user is always present
	// with the Captain role.
	Members []TeamMember `json:"members" db:"members"`

	// CreatedBy is the id of the user who created the team.
	CreatedBy string `json:"createdBy" db:"created_by"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent roster change.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasMember reports whether uid is on the roster.
func (t Team) HasMember(uid string) bool {
	for _, m := range t.Members {
		if m.UID == uid {
			return true
		}
	}
	return false
}
