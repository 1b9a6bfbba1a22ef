// Package notify fans toggle notifications out to every live key.
package notify

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Notifiable is implemented by any key that reacts to entries being
// started or stopped elsewhere.
type Notifiable interface {
	OnStopped()
	OnStarted()
}

type handle struct {
	id uuid.UUID
	n  Notifiable
}

// Bus is the registry of live keys. It is constructed once and injected into
// every key; it is not safe for concurrent use and must only be touched from
// the event loop.
type Bus struct {
	log     *slog.Logger
	handles []handle
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log}
}

// Register adds n and returns its handle id. Registering the same key twice
// returns the existing id.
func (b *Bus) Register(n Notifiable) uuid.UUID {
	for _, h := range b.handles {
		if h.n == n {
			return h.id
		}
	}
	h := handle{id: uuid.New(), n: n}
	b.handles = append(b.handles, h)
	b.log.Debug("key registered", slog.String("handle", h.id.String()), slog.Int("keys", len(b.handles)))
	return h.id
}

// Unregister removes n. It reports whether n was registered.
func (b *Bus) Unregister(n Notifiable) bool {
	for i, h := range b.handles {
		if h.n == n {
			b.handles = append(b.handles[:i:i], b.handles[i+1:]...)
			b.log.Debug("key unregistered", slog.String("handle", h.id.String()), slog.Int("keys", len(b.handles)))
			return true
		}
	}
	return false
}

// Len returns the number of registered keys.
func (b *Bus) Len() int { return len(b.handles) }

// NotifyStopped tells every key except sender that an entry was stopped.
// It returns the number of keys that handled the notification.
func (b *Bus) NotifyStopped(sender Notifiable) int {
	return b.fanOut("stopped", sender, Notifiable.OnStopped)
}

// NotifyStarted tells every key except sender that an entry was started.
func (b *Bus) NotifyStarted(sender Notifiable) int {
	return b.fanOut("started", sender, Notifiable.OnStarted)
}

func (b *Bus) fanOut(kind string, sender Notifiable, call func(Notifiable)) int {
	// Handlers may register or unregister keys while we deliver.
	snapshot := append([]handle(nil), b.handles...)
	delivered := 0
	for _, h := range snapshot {
		if sender != nil && h.n == sender {
			continue
		}
		if err := deliver(h.n, call); err != nil {
			b.log.Error("notification handler failed",
				slog.String("kind", kind),
				slog.String("handle", h.id.String()),
				slog.Any("error", err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func deliver(n Notifiable, call func(Notifiable)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	call(n)
	return nil
}
