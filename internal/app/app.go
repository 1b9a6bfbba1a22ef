package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"kimai-deck/internal/adapter/kimai"
	msql "kimai-deck/internal/adapter/mysql"
	"kimai-deck/internal/config"
	"kimai-deck/internal/deck"
	"kimai-deck/internal/display"
	"kimai-deck/internal/loop"
	"kimai-deck/internal/migrate"
	"kimai-deck/internal/notify"
	"kimai-deck/internal/ports"
	"kimai-deck/internal/toggle"
)

// ErrUnknownKey is returned when a press names no configured key.
var ErrUnknownKey = errors.New("unknown key")

const shutdownGrace = 2 * time.Second

// key is the surface shared by toggle, display and stop keys.
type key interface {
	Name() string
	Attach()
	Detach()
	Press()
}

// App wires the Kimai client, the journal and one controller per configured key
// onto a single event loop.
type App struct {
	log     *slog.Logger
	loop    *loop.Loop
	bus     *notify.Bus
	board   *deck.Board
	journal *msql.Client

	keys  map[string]key
	names []string
}

// New builds the deck described by cfg. When a journal DSN is configured the
// schema is migrated and the journal opened before any key is created.
// Faces are printed to out as they change; out may be nil.
func New(ctx context.Context, log *slog.Logger, cfg config.Config, out io.Writer) (*App, error) {
	client := kimai.NewClient(cfg.Kimai.URL, cfg.Kimai.APIToken, cfg.Kimai.Timeout, log)

	var (
		journal ports.Journal
		db      *msql.Client
	)
	if cfg.Journal.DSN != "" {
		// Run migrations before opening the journal for use
		if err := migrate.Run(ctx, cfg.Journal.DSN, log); err != nil {
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
		c, err := msql.NewClient(ctx, cfg.Journal.DSN, log)
		if err != nil {
			return nil, err
		}
		journal, db = c, c
	} else {
		log.Info("toggle journal disabled, JOURNAL_DSN not set")
	}

	a := build(log, cfg, client, journal, out)
	a.journal = db
	return a, nil
}

func build(log *slog.Logger, cfg config.Config, client ports.TimesheetClient, journal ports.Journal, out io.Writer) *App {
	a := &App{
		log:   log,
		loop:  loop.New(log),
		bus:   notify.NewBus(log),
		board: deck.NewBoard(out),
		keys:  make(map[string]key),
	}
	for _, k := range cfg.Keys {
		var kk key
		switch k.Kind {
		case config.KindDisplay:
			kk = display.New(k.Name, cfg.KeyConfig(k), display.Deps{
				Log:   log,
				Loop:  a.loop,
				Bus:   a.bus,
				Kimai: client,
				Key:   a.board.Key(k.Name),
			}, display.Options{})
		case config.KindStop:
			kk = toggle.NewStopKey(k.Name, cfg.KeyConfig(k), toggle.Deps{
				Log:     log,
				Loop:    a.loop,
				Bus:     a.bus,
				Kimai:   client,
				Journal: journal,
				Key:     a.board.Key(k.Name),
			}, toggle.Options{})
		default:
			kk = toggle.New(k.Name, cfg.KeyConfig(k), toggle.Deps{
				Log:     log,
				Loop:    a.loop,
				Bus:     a.bus,
				Kimai:   client,
				Journal: journal,
				Key:     a.board.Key(k.Name),
			}, toggle.Options{})
		}
		a.keys[k.Name] = kk
		a.names = append(a.names, k.Name)
	}
	return a
}

// Keys returns the configured key names in layout order.
func (a *App) Keys() []string { return append([]string(nil), a.names...) }

// Lookup maps a key name or its 1-based position to the key name.
func (a *App) Lookup(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if _, ok := a.keys[token]; ok {
		return token, true
	}
	if n, err := strconv.Atoi(token); err == nil && n >= 1 && n <= len(a.names) {
		return a.names[n-1], true
	}
	return "", false
}

// Run drives the loop until ctx is done. Keys are attached on entry and
// detached on the way out, so late responses are dropped.
func (a *App) Run(ctx context.Context) error {
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	done := make(chan error, 1)
	go func() { done <- a.loop.Run(loopCtx) }()

	a.loop.Post(func() {
		for _, name := range a.names {
			a.keys[name].Attach()
		}
	})
	a.log.Info("deck running", slog.Int("keys", len(a.names)))

	<-ctx.Done()
	a.log.Info("shutting down")

	c, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := a.loop.Do(c, func() {
		for _, name := range a.names {
			a.keys[name].Detach()
		}
	}); err != nil {
		a.log.Warn("detaching keys timed out", slog.Any("error", err))
	}
	stopLoop()
	<-done
	return nil
}

// Press presses the named key on the loop.
func (a *App) Press(ctx context.Context, name string) error {
	k, ok := a.keys[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	a.log.Debug("key pressed", slog.String("key", name))
	return a.loop.Do(ctx, k.Press)
}

// Snapshot returns the current face of every key.
func (a *App) Snapshot(ctx context.Context) ([]deck.KeyFace, error) {
	var faces []deck.KeyFace
	err := a.loop.Do(ctx, func() { faces = a.board.Snapshot() })
	return faces, err
}

// Close releases the journal connection, if any.
func (a *App) Close() error {
	if a.journal == nil {
		return nil
	}
	return a.journal.Close()
}
