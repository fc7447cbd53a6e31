package types

import "time"

// Notification tells a user that someone else added them to a problem.
// Notifications are only ever created for a recipient other than the actor,
// and are never deleted; the read flag is their only mutable state.
type Notification struct {
	ID string `json:"id" db:"id"`

	// UserID is the recipient.
	UserID string `json:"userId" db:"user_id"`

	// ProblemID and ProblemTitle identify the problem; the title is cached
	// at creation time so the notification survives problem deletion.
	ProblemID    string `json:"problemId" db:"problem_id"`
	ProblemTitle string `json:"problemTitle" db:"problem_title"`

	// AssignedBy and AssignedByName identify the acting user.
	AssignedBy     string `json:"assignedBy" db:"assigned_by"`
	AssignedByName string `json:"assignedByName" db:"assigned_by_name"`

	IsRead    bool      `json:"isRead" db:"is_read"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
