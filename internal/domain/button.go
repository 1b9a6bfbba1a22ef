package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidID is returned when a project or activity id is not numeric.
var ErrInvalidID = errors.New("project and activity ids must be numeric")

// ButtonState is the local view a toggle key keeps of the entry it tracks.
type ButtonState struct {
	Running        bool
	TrackedEntryID int64 // Zero when not tracking
	StartTimestamp string
}

// KeyConfig is the configuration one toggle key consumes.
type KeyConfig struct {
	ServiceURL  string
	APIToken    string
	ProjectID   string
	ActivityID  string
	Description string
}

// Missing returns the names of required fields that are empty.
func (c KeyConfig) Missing() []string {
	var out []string
	if strings.TrimSpace(c.ServiceURL) == "" {
		out = append(out, "service_url")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		out = append(out, "api_token")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		out = append(out, "project_id")
	}
	if strings.TrimSpace(c.ActivityID) == "" {
		out = append(out, "activity_id")
	}
	return out
}

// IDs parses the project and activity ids.
func (c KeyConfig) IDs() (projectID, activityID int64, err error) {
	return ParseIDs(c.ProjectID, c.ActivityID)
}

// ParseIDs parses positive decimal ids. Surrounding blanks and leading zeros
// are accepted, so "042" names project 42.
func ParseIDs(project, activity string) (projectID, activityID int64, err error) {
	projectID, err = strconv.ParseInt(strings.TrimSpace(project), 10, 64)
	if err != nil || projectID <= 0 {
		return 0, 0, fmt.Errorf("%w: project %q", ErrInvalidID, project)
	}
	activityID, err = strconv.ParseInt(strings.TrimSpace(activity), 10, 64)
	if err != nil || activityID <= 0 {
		return 0, 0, fmt.Errorf("%w: activity %q", ErrInvalidID, activity)
	}
	return projectID, activityID, nil
}

// Catalog types are only used to help fill in the key layout.

// Project is a Kimai project.
type Project struct {
	ID         int64
	Name       string
	CustomerID int64
	Customer   string
	Visible    bool
}

// Activity is a Kimai activity, optionally bound to a project.
type Activity struct {
	ID        int64
	Name      string
	ProjectID *int64 // Nil for global activities
	Visible   bool
}

// Customer is a Kimai customer.
type Customer struct {
	ID      int64
	Name    string
	Visible bool
}
