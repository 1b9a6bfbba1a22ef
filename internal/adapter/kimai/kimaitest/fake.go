// Package kimaitest provides an in-memory Kimai timesheet service for tests.
package kimaitest

import (
	"context"
	"sort"
	"sync"

	"kimai-deck/internal/domain"
	"kimai-deck/internal/ports"
)

// Fake implements ports.TimesheetClient over an in-memory entry list.
// Error fields, when set, are returned by the matching call instead of
// touching the store.
type Fake struct {
	mu      sync.Mutex
	entries []domain.TimeEntry
	nextID  int64

	ListErr   error
	CreateErr error
	StopErr   error
	// EndStamp is written into End when an entry is stopped.
	EndStamp string

	Lists, Creates, Stops int
	Created               []domain.NewTimeEntry
	StoppedIDs            []int64
}

var _ ports.TimesheetClient = (*Fake)(nil)

// New returns a Fake seeded with entries. Ids handed out by CreateEntry
// continue after the largest seeded id.
func New(entries ...domain.TimeEntry) *Fake {
	f := &Fake{nextID: 1, EndStamp: "2025-06-18T12:00:00"}
	for _, e := range entries {
		f.entries = append(f.entries, e)
		if e.ID >= f.nextID {
			f.nextID = e.ID + 1
		}
	}
	return f
}

func (f *Fake) RecentEntries(ctx context.Context, q ports.EntryQuery) ([]domain.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lists++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]domain.TimeEntry, 0, len(f.entries))
	for _, e := range f.entries {
		if q.ActiveOnly && !e.Active() {
			continue
		}
		out = append(out, e)
	}
	// Newest first; the fake orders by id since begin strings may share a second.
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Size > 0 && len(out) > q.Size {
		out = out[:q.Size]
	}
	return out, nil
}

func (f *Fake) CreateEntry(ctx context.Context, n domain.NewTimeEntry) (domain.TimeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Creates++
	f.Created = append(f.Created, n)
	if f.CreateErr != nil {
		return domain.TimeEntry{}, f.CreateErr
	}
	e := domain.TimeEntry{
		ID:          f.nextID,
		Begin:       n.Begin,
		ProjectID:   n.ProjectID,
		ActivityID:  n.ActivityID,
		Description: n.Description,
	}
	f.nextID++
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *Fake) StopEntry(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stops++
	f.StoppedIDs = append(f.StoppedIDs, id)
	if f.StopErr != nil {
		return f.StopErr
	}
	for i := range f.entries {
		if f.entries[i].ID == id {
			end := f.EndStamp
			f.entries[i].End = &end
			return nil
		}
	}
	return &domain.ServiceError{Op: "kimai: stop timesheet", Status: 404, Body: "not found"}
}

// Calls returns the total number of requests issued.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Lists + f.Creates + f.Stops
}

// Active returns the ids of entries that have not ended.
func (f *Fake) Active() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, e := range f.entries {
		if e.Active() {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// SetErrors replaces the injected errors under the lock.
func (f *Fake) SetErrors(list, create, stop error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListErr, f.CreateErr, f.StopErr = list, create, stop
}
