package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimai-deck/internal/adapter/kimai/kimaitest"
	"kimai-deck/internal/domain"
	"kimai-deck/internal/resolver"
)

var fixedNow = time.Date(2025, 6, 18, 9, 32, 46, 0, time.Local)

func newUseCase(f *kimaitest.Fake) *StartUseCase {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &StartUseCase{
		Log:      log,
		Kimai:    f,
		Resolver: &resolver.Resolver{Log: log, Client: f},
		Now:      func() time.Time { return fixedNow },
	}
}

func TestRun_StopsActiveThenCreates(t *testing.T) {
	f := kimaitest.New(domain.TimeEntry{ID: 5, Begin: "2025-06-18T07:00:00", ProjectID: 1, ActivityID: 3})
	uc := newUseCase(f)

	announced := 0
	entry, err := uc.Run(context.Background(), StartRequest{ProjectID: "2", ActivityID: "4", Description: "review"}, func() {
		announced++
		assert.Equal(t, 0, f.Creates, "stop must be announced before create")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, announced)
	assert.Equal(t, []int64{5}, f.StoppedIDs)
	assert.Equal(t, int64(6), entry.ID)
	assert.Equal(t, []int64{6}, f.Active())

	require.Len(t, f.Created, 1)
	assert.Equal(t, "2025-06-18T09:32:46", f.Created[0].Begin)
	assert.Equal(t, int64(2), f.Created[0].ProjectID)
	assert.Equal(t, int64(4), f.Created[0].ActivityID)
	assert.Equal(t, "review", f.Created[0].Description)
}

func TestRun_NoActiveEntryStillAnnounces(t *testing.T) {
	f := kimaitest.New()
	announced := false
	_, err := newUseCase(f).Run(context.Background(), StartRequest{ProjectID: "1", ActivityID: "3"}, func() { announced = true })
	require.NoError(t, err)
	assert.True(t, announced)
	assert.Equal(t, 0, f.Stops)
}

func TestRun_FailedAutoStopDoesNotBlockCreate(t *testing.T) {
	f := kimaitest.New(domain.TimeEntry{ID: 5, Begin: "2025-06-18T07:00:00", ProjectID: 1, ActivityID: 3})
	f.StopErr = &domain.ServiceError{Op: "stop", Status: 500}
	announced := false

	entry, err := newUseCase(f).Run(context.Background(), StartRequest{ProjectID: "2", ActivityID: "4"}, func() { announced = true })
	require.NoError(t, err)
	assert.True(t, announced)
	assert.Equal(t, int64(6), entry.ID)
	assert.ElementsMatch(t, []int64{5, 6}, f.Active())
}

func TestRun_ResolveFailureAbortsBeforeAnyWrite(t *testing.T) {
	f := kimaitest.New()
	f.ListErr = &domain.TransportError{Op: "list", Err: context.DeadlineExceeded}
	announced := false

	_, err := newUseCase(f).Run(context.Background(), StartRequest{ProjectID: "1", ActivityID: "3"}, func() { announced = true })
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, announced)
	assert.Equal(t, 0, f.Creates)
}

func TestRun_CreateFailureIsSurfaced(t *testing.T) {
	f := kimaitest.New()
	f.CreateErr = &domain.ServiceError{Op: "create", Status: 400, Body: "invalid"}

	_, err := newUseCase(f).Run(context.Background(), StartRequest{ProjectID: "1", ActivityID: "3"}, nil)
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 400, se.Status)
}

func TestRun_NonNumericIDs(t *testing.T) {
	f := kimaitest.New()
	_, err := newUseCase(f).Run(context.Background(), StartRequest{ProjectID: "abc", ActivityID: "3"}, nil)
	require.True(t, errors.Is(err, domain.ErrInvalidID))
	assert.Equal(t, 0, f.Calls())
}

func TestRun_LeadingZeroIDs(t *testing.T) {
	f := kimaitest.New()
	_, err := newUseCase(f).Run(context.Background(), StartRequest{ProjectID: "042", ActivityID: " 07 "}, nil)
	require.NoError(t, err)
	require.Len(t, f.Created, 1)
	assert.Equal(t, int64(42), f.Created[0].ProjectID)
	assert.Equal(t, int64(7), f.Created[0].ActivityID)
}
