// Package resolver answers which Kimai entry, if any, is currently running.
package resolver

import (
	"context"
	"log/slog"

	"kimai-deck/internal/domain"
	"kimai-deck/internal/ports"
)

// latest selects the single most recently begun entry with nested names.
var latest = ports.EntryQuery{Size: 1, Full: true}

// Resolver reads the active entry from the remote service.
type Resolver struct {
	Log    *slog.Logger
	Client ports.TimesheetClient
}

// Lookup returns the active entry, nil when the newest entry has ended or
// there are no entries, and an error when the request or decoding failed.
func (r *Resolver) Lookup(ctx context.Context) (*domain.TimeEntry, error) {
	entries, err := r.Client.RecentEntries(ctx, latest)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	e := entries[0]
	if !e.Active() {
		return nil, nil
	}
	return &e, nil
}

// Active is Lookup with failures logged and reported as "no active entry".
func (r *Resolver) Active(ctx context.Context) *domain.TimeEntry {
	e, err := r.Lookup(ctx)
	if err != nil {
		r.Log.Warn("resolving active entry failed", slog.Any("error", err))
		return nil
	}
	if e == nil {
		r.Log.Debug("no active entry")
		return nil
	}
	r.Log.Debug("active entry resolved",
		slog.Int64("entry", e.ID),
		slog.Int64("project", e.ProjectID),
		slog.Int64("activity", e.ActivityID),
	)
	return e
}
