package ports

import (
	"context"
	"time"

	"kimai-deck/internal/domain"
)

// EntryQuery selects timesheets. Zero values leave the parameter out.
type EntryQuery struct {
	Size       int
	ActiveOnly bool
	Full       bool // Expand project, activity and customer objects
}

// TimesheetClient is the part of the Kimai API the toggle core depends on.
type TimesheetClient interface {
	// RecentEntries returns entries ordered by begin, newest first.
	RecentEntries(ctx context.Context, q EntryQuery) ([]domain.TimeEntry, error)
	CreateEntry(ctx context.Context, e domain.NewTimeEntry) (domain.TimeEntry, error)
	StopEntry(ctx context.Context, id int64) error
}

// CatalogClient lists the records used to fill in key configuration.
type CatalogClient interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	ListActivities(ctx context.Context, projectID int64) ([]domain.Activity, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
}

// ToggleEvent is one confirmed transition of a toggle key.
type ToggleEvent struct {
	Key        string
	Kind       string // started, stopped, adopted, released
	EntryID    int64
	ProjectID  string
	ActivityID string
	Begin      string
	At         time.Time
}

// Journal receives toggle transitions and persists them to a target system.
type Journal interface {
	Record(ctx context.Context, ev ToggleEvent) error
	Recent(ctx context.Context, limit int) ([]ToggleEvent, error)
}
