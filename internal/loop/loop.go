// Package loop provides the single-threaded event loop that owns all key
// state. Blocking work runs on short-lived goroutines started with Go and
// hands its result back through Post; only callbacks running on the loop may
// touch controller state, faces or the notification bus.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Loop serializes callbacks onto one goroutine.
type Loop struct {
	log *slog.Logger

	mu    sync.Mutex
	items []func()
	wake  chan struct{}

	pending atomic.Int64
}

func New(log *slog.Logger) *Loop {
	return &Loop{
		log:  log,
		wake: make(chan struct{}, 1),
	}
}

// Run drains posted callbacks until ctx is done. Callbacks posted before Run
// starts are kept and executed in order.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			batch := l.items
			l.items = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				l.call(fn)
			}
		}
	}
}

// Post enqueues fn to run on the loop. It never blocks, so it is safe to call
// from the loop itself.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.items = append(l.items, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to return. It must not be called
// from a loop callback.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of workers whose result has not been applied yet.
func (l *Loop) Pending() int64 { return l.pending.Load() }

// Idle reports whether no worker is in flight and nothing is queued.
func (l *Loop) Idle() bool {
	l.mu.Lock()
	queued := len(l.items)
	l.mu.Unlock()
	return queued == 0 && l.pending.Load() == 0
}

// ErrWorkerPanic is passed to then when work panicked.
var ErrWorkerPanic = errors.New("loop: worker panicked")

// Go runs work on its own goroutine and applies then to the result on the
// loop. work must not touch loop-owned state. then always runs, so callers
// can release whatever they reserved before starting work; a panic in work
// reaches then as an error wrapping ErrWorkerPanic.
func Go[T any](l *Loop, work func() (T, error), then func(T, error)) {
	l.pending.Add(1)
	go func() {
		var (
			v   T
			err error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.log.Error("worker panicked",
						slog.Any("panic", r),
						slog.String("stack", string(debug.Stack())),
					)
					var zero T
					v, err = zero, fmt.Errorf("%w: %v", ErrWorkerPanic, r)
				}
			}()
			v, err = work()
		}()
		l.Post(func() {
			defer l.pending.Add(-1)
			then(v, err)
		})
	}()
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("loop callback panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}

// Timer is a cancelable handle for a periodic or one-shot callback.
type Timer struct {
	stop     chan struct{}
	once     sync.Once
	canceled atomic.Bool
}

func newTimer() *Timer { return &Timer{stop: make(chan struct{})} }

// Cancel stops the timer. Ticks already queued on the loop are dropped.
// It is safe to call on a nil Timer and more than once.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.canceled.Store(true)
		close(t.stop)
	})
}

// Canceled reports whether Cancel was called.
func (t *Timer) Canceled() bool { return t != nil && t.canceled.Load() }

// Every runs fn on the loop once per period until fn returns false or the
// timer is canceled.
func (l *Loop) Every(period time.Duration, fn func() bool) *Timer {
	t := newTimer()
	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				l.Post(func() {
					if t.Canceled() {
						return
					}
					if !fn() {
						t.Cancel()
					}
				})
			}
		}
	}()
	return t
}

// After runs fn on the loop once after d unless the timer is canceled first.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	t := newTimer()
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-t.stop:
		case <-timer.C:
			l.Post(func() {
				if t.Canceled() {
					return
				}
				t.Cancel()
				fn()
			})
		}
	}()
	return t
}
