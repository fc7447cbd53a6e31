package types

// Contest is an upcoming contest announced by a judge site.
type Contest struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Platform         string `json:"platform"`
	StartTimeSeconds int64  `json:"startTimeSeconds"`
	DurationSeconds  int64  `json:"durationSeconds"`

	// TimeUntil is a human-readable countdown ("2h 30m"), computed at
	// fetch time.
	TimeUntil string `json:"timeUntil"`
}
