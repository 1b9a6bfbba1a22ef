package domain

// TimeEntry represents a Kimai timesheet record in the domain.
type TimeEntry struct {
	ID          int64
	Begin       string  // As returned by Kimai; may carry a zone suffix
	End         *string // Nil means the entry is still running
	ProjectID   int64
	ActivityID  int64
	Description string

	// Names are only populated when the entry was fetched with full expansion.
	Project  string
	Activity string
	Customer string
}

// Active reports whether the entry has no end timestamp.
func (e TimeEntry) Active() bool { return e.End == nil }

// Matches reports whether the entry was booked on the given project and activity.
func (e TimeEntry) Matches(projectID, activityID int64) bool {
	return e.ProjectID == projectID && e.ActivityID == activityID
}

// NewTimeEntry is the payload for creating a timesheet.
type NewTimeEntry struct {
	Begin       string // Naive local timestamp, no zone suffix
	ProjectID   int64
	ActivityID  int64
	Description string
}
