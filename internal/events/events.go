// Package events names the broker channels and payloads flowing between
// the stores, the notification relay, and the live-sync watchers.
package events

// Change channels. A message on one of these means "records in this scope
// changed, re-query"; the payload is empty and the affected user/team ids
// travel as attributes.
const (
	ChannelProblemChanges      = "changes.problems"
	ChannelTeamChanges         = "changes.teams"
	ChannelProfileChanges      = "changes.profiles"
	ChannelNotificationChanges = "changes.notifications"

	// ChannelAssignments carries Assignment payloads consumed by the
	// notification relay.
	ChannelAssignments = "notifications.assignments"
)

// Attribute keys on change messages.
const (
	AttrUser = "user"
	AttrTeam = "team"
)

// Assignment is published when a user is added to a problem's assignee set
// by someone else. The relay turns it into a notification record.
type Assignment struct {
	Recipient      string `json:"recipient"`
	ProblemID      string `json:"problemId"`
	ProblemTitle   string `json:"problemTitle"`
	AssignedBy     string `json:"assignedBy"`
	AssignedByName string `json:"assignedByName"`
}
