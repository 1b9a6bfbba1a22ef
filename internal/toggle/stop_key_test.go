package toggle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kimai-deck/internal/adapter/kimai/kimaitest"
	"kimai-deck/internal/deck"
	"kimai-deck/internal/domain"
)

func (h *harness) stopKey(name string, cfg domain.KeyConfig) *StopKey {
	h.t.Helper()
	s := NewStopKey(name, cfg, Deps{
		Log:     h.log,
		Loop:    h.loop,
		Bus:     h.bus,
		Kimai:   h.kimai,
		Journal: h.journal,
		Key:     h.board.Key(name),
	}, h.opts)
	h.do(s.Attach)
	h.settle()
	return s
}

var stopCfg = domain.KeyConfig{ServiceURL: "http://kimai.local", APIToken: "secret"}

func TestStopKeyStopsActiveEntry(t *testing.T) {
	fake := kimaitest.New(domain.TimeEntry{ID: 5, Begin: "2025-06-18T07:02:46", ProjectID: 1, ActivityID: 3})
	h := newHarness(t, fake)
	dev := h.key("dev", "1", "3")
	s := h.stopKey("halt", stopCfg)

	h.do(s.Press)
	h.settle()

	assert.Equal(t, []int64{5}, fake.StoppedIDs)
	assert.Empty(t, fake.Active())
	f := h.face("halt")
	assert.Equal(t, "Stopped", f.Center)
	assert.Equal(t, deck.ToneRunning, f.Tone)

	st, _ := h.button(dev)
	assert.False(t, st.Running, "toggle keys release the stopped entry")
	assert.Equal(t, deck.ToneIdle, h.face("dev").Tone)
	assert.Equal(t, []string{"stopped"}, h.journal.kinds("halt"))
}

func TestStopKeyWithNothingRunning(t *testing.T) {
	fake := kimaitest.New()
	h := newHarness(t, fake)
	s := h.stopKey("halt", stopCfg)

	h.do(s.Press)
	h.settle()

	var err error
	h.do(func() { err = s.Err() })
	assert.ErrorIs(t, err, ErrNothingRunning)
	f := h.face("halt")
	assert.Equal(t, "Error", f.Center)
	assert.Equal(t, deck.ToneError, f.Tone)
	assert.Zero(t, fake.Stops)
}

func TestStopKeyFaceReturnsToIdle(t *testing.T) {
	fake := kimaitest.New(domain.TimeEntry{ID: 5, Begin: "2025-06-18T07:02:46", ProjectID: 1, ActivityID: 3})
	h := newHarness(t, fake)
	h.opts.ErrorHold = 10 * time.Millisecond
	s := h.stopKey("halt", stopCfg)

	h.do(s.Press)
	h.settle()

	require.Eventually(t, func() bool {
		return h.face("halt").Tone == deck.ToneIdle
	}, time.Second, 5*time.Millisecond)
}

func TestStopKeyReportsServiceFailure(t *testing.T) {
	fake := kimaitest.New(domain.TimeEntry{ID: 5, Begin: "2025-06-18T07:02:46", ProjectID: 1, ActivityID: 3})
	fake.StopErr = &domain.ServiceError{Op: "kimai: stop timesheet", Status: 500, Body: "oops"}
	h := newHarness(t, fake)
	s := h.stopKey("halt", stopCfg)

	h.do(s.Press)
	h.settle()

	var err error
	h.do(func() { err = s.Err() })
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Error", h.face("halt").Center)
	assert.Equal(t, []int64{5}, fake.Active())
	assert.Empty(t, h.journal.kinds("halt"))
}

func TestStopKeyWithoutTokenIssuesNoRequests(t *testing.T) {
	fake := kimaitest.New()
	h := newHarness(t, fake)
	s := h.stopKey("halt", domain.KeyConfig{ServiceURL: "http://kimai.local"})

	h.do(s.Press)
	h.settle()

	var err error
	h.do(func() { err = s.Err() })
	assert.True(t, errors.Is(err, domain.ErrConfigurationMissing))
	assert.Equal(t, "Missing", h.face("halt").Bottom)
	assert.Zero(t, fake.Calls())
}
