package toggle

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"kimai-deck/internal/deck"
	"kimai-deck/internal/domain"
	"kimai-deck/internal/loop"
	"kimai-deck/internal/notify"
	"kimai-deck/internal/ports"
	"kimai-deck/internal/resolver"
)

// ErrNothingRunning is shown by a stop key pressed while no entry is active.
var ErrNothingRunning = errors.New("no active entry to stop")

// StopKey stops whatever entry is active, regardless of project or activity.
// It shows a success face after each stop and does not track any state.
type StopKey struct {
	name     string
	cfg      domain.KeyConfig
	log      *slog.Logger
	loop     *loop.Loop
	bus      *notify.Bus
	kimai    ports.TimesheetClient
	journal  ports.Journal
	key      deck.Key
	resolver *resolver.Resolver
	now      func() time.Time
	hold     time.Duration

	busy      bool
	attached  bool
	lastErr   error
	faceTimer *loop.Timer
}

// NewStopKey builds a stop key. Only the service URL and token of cfg are used.
func NewStopKey(name string, cfg domain.KeyConfig, deps Deps, opts Options) *StopKey {
	if opts.ErrorHold <= 0 {
		opts.ErrorHold = DefaultErrorHold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := deps.Log.With(slog.String("key", name))
	return &StopKey{
		name:     name,
		cfg:      cfg,
		log:      log,
		loop:     deps.Loop,
		bus:      deps.Bus,
		kimai:    deps.Kimai,
		journal:  deps.Journal,
		key:      deps.Key,
		resolver: &resolver.Resolver{Log: log, Client: deps.Kimai},
		now:      opts.Now,
		hold:     opts.ErrorHold,
	}
}

func (s *StopKey) Name() string { return s.name }

// Err returns the error currently shown, if any.
func (s *StopKey) Err() error { return s.lastErr }

func (s *StopKey) Attach() {
	if s.attached {
		return
	}
	s.attached = true
	s.idle()
}

func (s *StopKey) Detach() {
	if !s.attached {
		return
	}
	s.attached = false
	s.faceTimer.Cancel()
	s.faceTimer = nil
}

// Press stops the active entry.
func (s *StopKey) Press() {
	if !s.attached {
		return
	}
	if s.busy {
		s.log.Debug("press ignored, request in flight")
		return
	}
	s.idle()
	var missing []string
	if strings.TrimSpace(s.cfg.ServiceURL) == "" {
		missing = append(missing, "service_url")
	}
	if strings.TrimSpace(s.cfg.APIToken) == "" {
		missing = append(missing, "api_token")
	}
	if len(missing) > 0 {
		s.fail(&domain.ConfigError{Fields: missing})
		return
	}

	s.busy = true
	loop.Go(s.loop, func() (domain.TimeEntry, error) {
		ctx := context.Background()
		e, err := s.resolver.Lookup(ctx)
		if err != nil {
			return domain.TimeEntry{}, err
		}
		if e == nil {
			return domain.TimeEntry{}, ErrNothingRunning
		}
		return *e, s.kimai.StopEntry(ctx, e.ID)
	}, func(e domain.TimeEntry, err error) {
		s.busy = false
		if !s.attached {
			return
		}
		if err != nil {
			s.fail(err)
			return
		}
		s.log.Info("active entry stopped", slog.Int64("entry", e.ID))
		s.show(deck.Face{Icon: "⏹", Top: s.name, Center: "Stopped", Tone: deck.ToneRunning})
		s.record(e)
		s.bus.NotifyStopped(nil)
	})
}

func (s *StopKey) fail(err error) {
	s.lastErr = err
	face := deck.Face{Icon: "⏹", Top: s.name, Center: "Error", Tone: deck.ToneError}
	switch {
	case errors.Is(err, domain.ErrConfigurationMissing):
		face.Center, face.Bottom, face.Tone = "Config", "Missing", deck.ToneWarning
		s.log.Warn("key not configured", slog.Any("error", err))
		s.key.Render(face)
		return
	case errors.Is(err, ErrNothingRunning):
		face.Bottom = "Idle"
		s.log.Warn("nothing to stop")
	default:
		s.log.Error("stop failed", slog.Any("error", err))
	}
	s.show(face)
}

// show renders f and returns to the idle face after the hold time.
func (s *StopKey) show(f deck.Face) {
	s.faceTimer.Cancel()
	s.key.Render(f)
	s.faceTimer = s.loop.After(s.hold, s.idle)
}

func (s *StopKey) idle() {
	s.faceTimer.Cancel()
	s.faceTimer = nil
	s.lastErr = nil
	s.key.Render(deck.Face{Icon: "⏹", Top: s.name, Tone: deck.ToneIdle})
}

func (s *StopKey) record(e domain.TimeEntry) {
	if s.journal == nil {
		return
	}
	ev := ports.ToggleEvent{
		Key:     s.name,
		Kind:    "stopped",
		EntryID: e.ID,
		Begin:   e.Begin,
		At:      s.now(),
	}
	if e.ProjectID > 0 {
		ev.ProjectID = strconv.FormatInt(e.ProjectID, 10)
		ev.ActivityID = strconv.FormatInt(e.ActivityID, 10)
	}
	loop.Go(s.loop, func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		return struct{}{}, s.journal.Record(ctx, ev)
	}, func(_ struct{}, err error) {
		if err != nil {
			s.log.Warn("journal write failed", slog.Any("error", err))
		}
	})
}
