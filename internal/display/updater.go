// Package display implements the read-only key that summarizes the active entry.
package display

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kimai-deck/internal/deck"
	"kimai-deck/internal/domain"
	"kimai-deck/internal/elapsed"
	"kimai-deck/internal/loop"
	"kimai-deck/internal/notify"
	"kimai-deck/internal/ports"
	"kimai-deck/internal/resolver"
)

// DefaultInterval is how often the summary is refreshed without a trigger.
const DefaultInterval = 30 * time.Second

// Label widths, in runes.
const (
	customerWidth = 8
	projectWidth  = 8
	activityWidth = 12
)

// Deps are the collaborators of an Updater.
type Deps struct {
	Log   *slog.Logger
	Loop  *loop.Loop
	Bus   *notify.Bus
	Kimai ports.TimesheetClient
	Key   deck.Key
}

// Options tune timing; zero values pick defaults.
type Options struct {
	Interval time.Duration
	Now      func() time.Time
}

// Updater polls the active entry and renders it. All methods run on the loop.
type Updater struct {
	name     string
	cfg      domain.KeyConfig
	log      *slog.Logger
	loop     *loop.Loop
	bus      *notify.Bus
	resolver *resolver.Resolver
	key      deck.Key
	interval time.Duration
	now      func() time.Time

	poll     *loop.Timer
	updating bool
	again    bool
	attached bool
	current  *domain.TimeEntry
}

var _ notify.Notifiable = (*Updater)(nil)

func New(name string, cfg domain.KeyConfig, deps Deps, opts Options) *Updater {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := deps.Log.With(slog.String("key", name))
	return &Updater{
		name:     name,
		cfg:      cfg,
		log:      log,
		loop:     deps.Loop,
		bus:      deps.Bus,
		resolver: &resolver.Resolver{Log: log, Client: deps.Kimai},
		key:      deps.Key,
		interval: opts.Interval,
		now:      opts.Now,
	}
}

func (u *Updater) Name() string { return u.name }

// Current returns the entry shown, or nil.
func (u *Updater) Current() *domain.TimeEntry { return u.current }

// Attach registers for notifications, starts polling and refreshes once.
func (u *Updater) Attach() {
	if u.attached {
		return
	}
	u.attached = true
	u.bus.Register(u)
	u.poll.Cancel()
	u.poll = u.loop.Every(u.interval, func() bool {
		u.Refresh()
		return u.attached
	})
	u.Refresh()
}

// Detach stops polling and unregisters.
func (u *Updater) Detach() {
	if !u.attached {
		return
	}
	u.attached = false
	u.bus.Unregister(u)
	u.poll.Cancel()
	u.poll = nil
}

// Press refreshes on demand.
func (u *Updater) Press() {
	u.log.Debug("manual refresh")
	u.Refresh()
}

func (u *Updater) OnStarted() { u.Refresh() }

func (u *Updater) OnStopped() { u.Refresh() }

// Refresh resolves the active entry and renders it. Requests arriving while a
// refresh is in flight collapse into one follow-up refresh.
func (u *Updater) Refresh() {
	if !u.attached {
		return
	}
	if u.updating {
		u.again = true
		return
	}
	if strings.TrimSpace(u.cfg.ServiceURL) == "" || strings.TrimSpace(u.cfg.APIToken) == "" {
		u.current = nil
		u.key.Render(deck.Face{Icon: "ⓘ", Center: "Config", Bottom: "Missing", Tone: deck.ToneWarning})
		u.log.Warn("display not configured")
		return
	}
	u.updating = true
	loop.Go(u.loop, func() (*domain.TimeEntry, error) {
		return u.resolver.Lookup(context.Background())
	}, func(e *domain.TimeEntry, err error) {
		u.updating = false
		if !u.attached {
			u.again = false
			return
		}
		u.show(e, err)
		if u.again {
			u.again = false
			u.Refresh()
		}
	})
}

func (u *Updater) show(e *domain.TimeEntry, err error) {
	var pe *domain.ParseError
	switch {
	case errors.As(err, &pe):
		u.current = nil
		u.log.Warn("unreadable timesheet response", slog.Any("error", err))
		u.key.Render(deck.Face{Icon: "ⓘ", Tone: deck.ToneIdle})
	case err != nil:
		u.current = nil
		u.log.Error("display refresh failed", slog.Any("error", err))
		u.key.Render(deck.Face{Icon: "ⓘ", Center: "Error", Tone: deck.ToneError})
	case e == nil:
		u.current = nil
		u.key.Render(deck.Face{Icon: "ⓘ", Tone: deck.ToneIdle})
	default:
		u.current = e
		f := Summary(*e, u.now())
		u.key.Render(f)
		u.log.Debug("display updated",
			slog.String("customer", e.Customer),
			slog.String("project", e.Project),
			slog.String("activity", e.Activity),
			slog.String("elapsed", f.Bottom),
		)
	}
}

// Summary renders an active entry as a key face.
func Summary(e domain.TimeEntry, now time.Time) deck.Face {
	top := strings.TrimSpace(truncate(e.Customer, customerWidth) + " " + truncate(e.Project, projectWidth))
	return deck.Face{
		Icon:   "ⓘ",
		Top:    top,
		Center: truncate(e.Activity, activityWidth),
		Bottom: elapsed.Render(e.Begin, now),
		Tone:   deck.ToneRunning,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
