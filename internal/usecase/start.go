package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kimai-deck/internal/domain"
	"kimai-deck/internal/elapsed"
	"kimai-deck/internal/ports"
	"kimai-deck/internal/resolver"
)

// StartRequest describes the entry a key wants to start.
type StartRequest struct {
	ProjectID   string
	ActivityID  string
	Description string
}

// StartUseCase stops whatever entry is running and creates a new one.
//
// The sequence is not atomic: another client may start an entry between the
// lookup and the create. Keys converge afterwards by re-resolving.
type StartUseCase struct {
	Log      *slog.Logger
	Kimai    ports.TimesheetClient
	Resolver *resolver.Resolver
	Now      func() time.Time
}

// Run executes the auto-stop-then-start sequence. announceStop is invoked
// after the auto-stop step whether or not a stop was needed or succeeded.
// Run blocks on network I/O and must not run on the event loop.
func (uc *StartUseCase) Run(ctx context.Context, req StartRequest, announceStop func()) (domain.TimeEntry, error) {
	if uc.Kimai == nil || uc.Resolver == nil {
		return domain.TimeEntry{}, errors.New("usecase not initialized: missing dependencies")
	}
	projectID, activityID, err := domain.ParseIDs(req.ProjectID, req.ActivityID)
	if err != nil {
		return domain.TimeEntry{}, err
	}

	active, err := uc.Resolver.Lookup(ctx)
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("resolve active entry: %w", err)
	}
	if active != nil {
		if err := uc.Kimai.StopEntry(ctx, active.ID); err != nil {
			uc.Log.Warn("auto-stop failed, starting anyway",
				slog.Int64("entry", active.ID),
				slog.Any("error", err),
			)
		} else {
			uc.Log.Info("auto-stopped running entry", slog.Int64("entry", active.ID))
		}
	}
	if announceStop != nil {
		announceStop()
	}

	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}
	entry, err := uc.Kimai.CreateEntry(ctx, domain.NewTimeEntry{
		Begin:       elapsed.FormatBegin(now()),
		ProjectID:   projectID,
		ActivityID:  activityID,
		Description: req.Description,
	})
	if err != nil {
		return domain.TimeEntry{}, fmt.Errorf("create entry: %w", err)
	}
	uc.Log.Info("entry started",
		slog.Int64("entry", entry.ID),
		slog.Int64("project", projectID),
		slog.Int64("activity", activityID),
	)
	return entry, nil
}
