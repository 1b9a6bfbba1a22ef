// Package toggle implements the start/stop key and the stop-only key.
//
// Every method of Controller runs on the event loop. Network calls are made
// from loop.Go workers and their results are applied back on the loop, so
// ButtonState needs no lock. The remote service remains the source of truth:
// keys converge by re-resolving after each notification, not by local exclusion.
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
	"kimai-deck/internal/elapsed"
	"kimai-deck/internal/loop"
	"kimai-deck/internal/notify"
	"kimai-deck/internal/ports"
	"kimai-deck/internal/resolver"
	"kimai-deck/internal/usecase"
)

// DefaultErrorHold is how long a transient error stays on the key.
const DefaultErrorHold = 3 * time.Second

const journalTimeout = 5 * time.Second

// State is the toggle state of a key.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Deps are the collaborators shared by all keys.
type Deps struct {
	Log     *slog.Logger
	Loop    *loop.Loop
	Bus     *notify.Bus
	Kimai   ports.TimesheetClient
	Journal ports.Journal // Optional
	Key     deck.Key
}

// Options tune timing; zero values pick defaults.
type Options struct {
	ErrorHold  time.Duration
	TickPeriod time.Duration
	Now        func() time.Time
}

// Controller is the state machine behind one toggle key.
type Controller struct {
	name     string
	cfg      domain.KeyConfig
	log      *slog.Logger
	loop     *loop.Loop
	bus      *notify.Bus
	kimai    ports.TimesheetClient
	journal  ports.Journal
	key      deck.Key
	resolver *resolver.Resolver
	starter  *usecase.StartUseCase
	ticker   *elapsed.Ticker
	now      func() time.Time
	hold     time.Duration

	// Parsed ids; idErr is set when the configured ids are not numeric.
	projectID  int64
	activityID int64
	idErr      error

	state    domain.ButtonState
	busy     bool
	lastErr  error
	errShown bool
	errTimer *loop.Timer
	attached bool
	// gen orders resolutions; a result older than the last transition is stale.
	gen uint64
}

var _ notify.Notifiable = (*Controller)(nil)

func New(name string, cfg domain.KeyConfig, deps Deps, opts Options) *Controller {
	if opts.ErrorHold <= 0 {
		opts.ErrorHold = DefaultErrorHold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := deps.Log.With(slog.String("key", name))
	res := &resolver.Resolver{Log: log, Client: deps.Kimai}
	c := &Controller{
		name:     name,
		cfg:      cfg,
		log:      log,
		loop:     deps.Loop,
		bus:      deps.Bus,
		kimai:    deps.Kimai,
		journal:  deps.Journal,
		key:      deps.Key,
		resolver: res,
		starter: &usecase.StartUseCase{
			Log:      log,
			Kimai:    deps.Kimai,
			Resolver: res,
			Now:      opts.Now,
		},
		ticker: elapsed.NewTicker(deps.Loop, opts.TickPeriod, opts.Now, log),
		now:    opts.Now,
		hold:   opts.ErrorHold,
	}
	if len(cfg.Missing()) == 0 {
		c.projectID, c.activityID, c.idErr = cfg.IDs()
	}
	return c
}

// Name returns the key name.
func (c *Controller) Name() string { return c.name }

// State returns the current toggle state.
func (c *Controller) State() State {
	if c.state.Running {
		return Running
	}
	return Stopped
}

// Button returns a copy of the tracked state.
func (c *Controller) Button() domain.ButtonState { return c.state }

// Err returns the last error shown on the key, if it is still shown.
func (c *Controller) Err() error {
	if !c.errShown {
		return nil
	}
	return c.lastErr
}

// Attach registers the key for notifications and recovers a running entry
// left over from a previous session.
func (c *Controller) Attach() {
	if c.attached {
		return
	}
	c.attached = true
	c.bus.Register(c)
	c.render()
	if len(c.cfg.Missing()) == 0 {
		c.reconcile("startup")
	}
}

// Detach unregisters the key and cancels its timers. Responses still in
// flight are dropped.
func (c *Controller) Detach() {
	if !c.attached {
		return
	}
	c.attached = false
	c.bus.Unregister(c)
	c.ticker.Stop()
	c.errTimer.Cancel()
}

// Press toggles the key.
func (c *Controller) Press() {
	if !c.attached {
		return
	}
	c.clearError()
	if c.busy {
		c.log.Debug("press ignored, request in flight")
		return
	}
	if c.state.Running {
		c.stop()
		return
	}
	c.start()
}

// OnStopped re-resolves after another key stopped an entry.
func (c *Controller) OnStopped() { c.reconcile("stopped elsewhere") }

// OnStarted re-resolves after another key started an entry.
func (c *Controller) OnStarted() { c.reconcile("started elsewhere") }

func (c *Controller) start() {
	if missing := c.cfg.Missing(); len(missing) > 0 {
		c.fail(&domain.ConfigError{Fields: missing})
		return
	}
	if c.idErr != nil {
		c.fail(c.idErr)
		return
	}
	req := usecase.StartRequest{
		ProjectID:   strings.TrimSpace(c.cfg.ProjectID),
		ActivityID:  strings.TrimSpace(c.cfg.ActivityID),
		Description: c.cfg.Description,
	}
	announce := func() {
		c.loop.Post(func() { c.bus.NotifyStopped(c) })
	}

	c.busy = true
	c.log.Info("starting entry", slog.String("project", req.ProjectID), slog.String("activity", req.ActivityID))
	loop.Go(c.loop, func() (domain.TimeEntry, error) {
		return c.starter.Run(context.Background(), req, announce)
	}, func(entry domain.TimeEntry, err error) {
		c.busy = false
		if !c.attached {
			return
		}
		var pe *domain.ParseError
		if errors.As(err, &pe) {
			// The entry may exist; let the service tell.
			c.log.Warn("create response unreadable", slog.Any("error", err))
			c.reconcile("create response unreadable")
			c.bus.NotifyStarted(c)
			return
		}
		if err != nil {
			c.fail(err)
			return
		}
		c.enterRunning(entry, "started")
		c.bus.NotifyStarted(c)
	})
}

func (c *Controller) stop() {
	id := c.state.TrackedEntryID
	c.busy = true
	c.log.Info("stopping entry", slog.Int64("entry", id))
	loop.Go(c.loop, func() (struct{}, error) {
		return struct{}{}, c.kimai.StopEntry(context.Background(), id)
	}, func(_ struct{}, err error) {
		c.busy = false
		if !c.attached {
			return
		}
		if err != nil {
			// The entry is still running remotely, so Running stays valid.
			c.fail(err)
			return
		}
		c.enterStopped("stopped")
		c.bus.NotifyStopped(c)
	})
}

// reconcile adopts the active entry when it belongs to this key and stops
// tracking otherwise.
func (c *Controller) reconcile(reason string) {
	c.gen++
	gen := c.gen
	c.log.Debug("re-resolving", slog.String("reason", reason))
	loop.Go(c.loop, func() (*domain.TimeEntry, error) {
		return c.resolver.Active(context.Background()), nil
	}, func(e *domain.TimeEntry, err error) {
		if !c.attached || gen != c.gen {
			return
		}
		if err != nil {
			c.log.Error("re-resolving failed", slog.Any("error", err))
			return
		}
		c.apply(e)
	})
}

func (c *Controller) apply(e *domain.TimeEntry) {
	mine := e != nil && c.idErr == nil && e.Matches(c.projectID, c.activityID)
	switch {
	case mine && (!c.state.Running || c.state.TrackedEntryID != e.ID):
		c.enterRunning(*e, "adopted")
	case !mine && c.state.Running:
		c.enterStopped("released")
	}
}

func (c *Controller) enterRunning(e domain.TimeEntry, kind string) {
	c.gen++
	c.state = domain.ButtonState{Running: true, TrackedEntryID: e.ID, StartTimestamp: e.Begin}
	c.log.Info("key running", slog.String("via", kind), slog.Int64("entry", e.ID), slog.String("begin", e.Begin))
	c.ticker.Start(e.Begin, func() bool { return c.attached && c.state.Running }, c.renderElapsed)
	c.record(kind, e.ID, e.Begin)
}

func (c *Controller) enterStopped(kind string) {
	c.gen++
	prev := c.state
	c.state = domain.ButtonState{}
	c.ticker.Stop()
	c.log.Info("key stopped", slog.String("via", kind), slog.Int64("entry", prev.TrackedEntryID))
	c.render()
	c.record(kind, prev.TrackedEntryID, prev.StartTimestamp)
}

func (c *Controller) fail(err error) {
	c.lastErr = err
	c.errShown = true
	c.errTimer.Cancel()
	c.errTimer = nil

	face := deck.Face{Icon: c.icon(), Top: c.name, Center: "Error", Tone: deck.ToneError}
	switch {
	case errors.Is(err, domain.ErrConfigurationMissing):
		face.Center, face.Bottom, face.Tone = "Config", "Missing", deck.ToneWarning
		c.log.Warn("key not configured", slog.Any("error", err))
	case domain.Transient(err):
		c.log.Error("key action failed", slog.String("state", c.State().String()), slog.Any("error", err))
		c.errTimer = c.loop.After(c.hold, c.clearError)
	default:
		// Shown until the next press.
		c.log.Error("key action failed", slog.String("state", c.State().String()), slog.Any("error", err))
	}
	c.key.Render(face)
}

func (c *Controller) clearError() {
	c.errTimer.Cancel()
	c.errTimer = nil
	if !c.errShown {
		return
	}
	c.errShown = false
	c.render()
}

func (c *Controller) render() {
	if c.state.Running {
		c.renderElapsed(elapsed.Render(c.state.StartTimestamp, c.now()))
		return
	}
	c.key.Render(deck.Face{Icon: c.icon(), Top: c.name, Tone: deck.ToneIdle})
}

func (c *Controller) renderElapsed(text string) {
	if c.errShown {
		return
	}
	c.key.Render(deck.Face{Icon: c.icon(), Top: c.name, Bottom: text, Tone: deck.ToneRunning})
}

func (c *Controller) icon() string {
	if c.state.Running {
		return "■"
	}
	return "▶"
}

func (c *Controller) record(kind string, entryID int64, begin string) {
	if c.journal == nil {
		return
	}
	ev := ports.ToggleEvent{
		Key:        c.name,
		Kind:       kind,
		EntryID:    entryID,
		ProjectID:  strconv.FormatInt(c.projectID, 10),
		ActivityID: strconv.FormatInt(c.activityID, 10),
		Begin:      begin,
		At:         c.now(),
	}
	loop.Go(c.loop, func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		return struct{}{}, c.journal.Record(ctx, ev)
	}, func(_ struct{}, err error) {
		if err != nil {
			c.log.Warn("journal write failed", slog.String("kind", kind), slog.Any("error", err))
		}
	})
}
