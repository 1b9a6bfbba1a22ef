package elapsed

import (
	"log/slog"
	"time"

	"kimai-deck/internal/loop"
)

// DefaultPeriod is how often a running key refreshes its readout.
const DefaultPeriod = time.Second

// Ticker refreshes the elapsed readout of one key. There is never more than
// one live schedule per Ticker. Start and Stop must be called on the loop.
type Ticker struct {
	loop   *loop.Loop
	period time.Duration
	now    func() time.Time
	log    *slog.Logger
	timer  *loop.Timer
}

func NewTicker(l *loop.Loop, period time.Duration, now func() time.Time, log *slog.Logger) *Ticker {
	if period <= 0 {
		period = DefaultPeriod
	}
	if now == nil {
		now = time.Now
	}
	return &Ticker{loop: l, period: period, now: now, log: log}
}

// Start cancels any previous schedule, renders the readout immediately and
// then once per period. The schedule ends on its own once alive reports false.
func (t *Ticker) Start(begin string, alive func() bool, render func(string)) {
	t.Stop()
	tick := func() bool {
		if !alive() {
			return false
		}
		text := Render(begin, t.now())
		if text == Unknown {
			t.log.Debug("unparseable begin timestamp", slog.String("begin", begin))
		}
		render(text)
		return true
	}
	if !tick() {
		return
	}
	t.timer = t.loop.Every(t.period, tick)
}

// Stop cancels the schedule, if any.
func (t *Ticker) Stop() {
	t.timer.Cancel()
	t.timer = nil
}

// Active reports whether a schedule is live.
func (t *Ticker) Active() bool {
	return t.timer != nil && !t.timer.Canceled()
}
