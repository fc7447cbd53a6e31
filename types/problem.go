package types

import "time"

// Status is a stage in the problem pipeline. The pipeline is cyclic:
// Todo -> InProgress -> Review -> Done -> Todo. Transitions are always
// user-triggered, never automatic.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "InProgress"
	StatusReview     Status = "Review"
	StatusDone       Status = "Done"
)

// Valid reports whether s is one of the four pipeline stages.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Next returns the stage that follows s in the pipeline cycle.
func (s Status) Next() Status {
	switch s {
	case StatusTodo:
		return StatusInProgress
	case StatusInProgress:
		return StatusReview
	case StatusReview:
		return StatusDone
	default:
		return StatusTodo
	}
}

// Platforms lists the judge sites a problem can originate from.
var Platforms = []string{"Codeforces", "LeetCode", "AtCoder", "Other"}

// Tags is the fixed tag vocabulary. Foreign judge tags are mapped into this
// set; anything unmapped is dropped.
var Tags = []string{
	"DP", "Graph", "Greedy", "Math", "Impl", "Strings",
	"Binary Search", "Interactive", "Bitmasks", "Constructive", "Geometry",
}

// Problem represents a tracked problem in the silver system.
// A problem is visible to a user exactly when the user's id is in Assignees.
type Problem struct {
	// ID is the unique identifier of the problem.
	ID string `json:"id" db:"id"`

	// Title is the human-readable name of the problem.
	Title string `json:"title" db:"title"`

	// Platform is the judge site the problem comes from, one of Platforms.
	Platform string `json:"platform" db:"platform"`

	// Difficulty is the difficulty bucket, usually Easy/Medium/Hard.
	Difficulty string `json:"difficulty" db:"difficulty"`

	// Status is the current pipeline stage.
	Status Status `json:"status" db:"status"`

	// Tags are labels from the fixed vocabulary in Tags.
	Tags []string `json:"tags" db:"tags"`

	// Assignees are the ids of users tracking this problem. The set is
	// never empty and always contains CreatedBy.
	Assignees []string `json:"assignees" db:"assignees"`

	// URL is the optional source link the problem was added from.
	URL string `json:"url,omitempty" db:"url"`

	// BalloonColor is assigned exactly once, on the first transition into
	// Done, and never recomputed afterwards.
	BalloonColor string `json:"balloonColor,omitempty" db:"balloon_color"`

	// CreatedBy is the id of the user who created the problem.
	CreatedBy string `json:"createdBy" db:"created_by"`

	// CreatedAt is the server-assigned creation timestamp.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasAssignee reports whether uid is in the assignee set.
func (p Problem) HasAssignee(uid string) bool {
	for _, a := range p.Assignees {
		if a == uid {
			return true
		}
	}
	return false
}

// CanModify reports whether uid may mutate or delete the problem: the
// creator and current assignees may, nobody else.
func (p Problem) CanModify(uid string) bool {
	return p.CreatedBy == uid || p.HasAssignee(uid)
}
