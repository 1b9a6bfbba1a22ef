// Package deck renders key faces. The console board stands in for the
// physical device: it keeps the latest face of every key and prints a line
// whenever one changes.
package deck

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Tone is the background state of a key.
type Tone int

const (
	ToneIdle Tone = iota
	ToneRunning
	ToneWarning
	ToneError
)

func (t Tone) String() string {
	switch t {
	case ToneRunning:
		return "running"
	case ToneWarning:
		return "warning"
	case ToneError:
		return "error"
	default:
		return "idle"
	}
}

// Face is what a key shows: an icon, three label lines and a tone.
type Face struct {
	Icon   string `json:"icon,omitempty"`
	Top    string `json:"top,omitempty"`
	Center string `json:"center,omitempty"`
	Bottom string `json:"bottom,omitempty"`
	Tone   Tone   `json:"-"`
}

// Key is a single renderable key surface.
type Key interface {
	Render(f Face)
}

// KeyFace pairs a key name with its current face.
type KeyFace struct {
	Name string `json:"name"`
	Face
	Tone string `json:"tone"`
}

// Board holds the faces of all keys. It is not safe for concurrent use; render
// and snapshot from the event loop.
type Board struct {
	out   io.Writer
	faces map[string]Face
	order []string
}

func NewBoard(out io.Writer) *Board {
	return &Board{out: out, faces: make(map[string]Face)}
}

// Key returns the surface for name, creating it on first use.
func (b *Board) Key(name string) Key {
	if _, ok := b.faces[name]; !ok {
		b.faces[name] = Face{}
		b.order = append(b.order, name)
	}
	return &boardKey{board: b, name: name}
}

// Face returns the current face of name.
func (b *Board) Face(name string) (Face, bool) {
	f, ok := b.faces[name]
	return f, ok
}

// Snapshot returns every key face in creation order.
func (b *Board) Snapshot() []KeyFace {
	out := make([]KeyFace, 0, len(b.order))
	for _, name := range b.order {
		f := b.faces[name]
		out = append(out, KeyFace{Name: name, Face: f, Tone: f.Tone.String()})
	}
	return out
}

func (b *Board) render(name string, f Face) {
	if prev, ok := b.faces[name]; ok && prev == f {
		return
	}
	b.faces[name] = f
	if b.out == nil {
		return
	}
	fmt.Fprintln(b.out, FormatLine(name, f))
}

// FormatLine renders a one-line console view of a face.
func FormatLine(name string, f Face) string {
	var parts []string
	for _, s := range []string{f.Top, f.Center, f.Bottom} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	body := strings.Join(parts, " | ")
	if body == "" {
		body = "-"
	}
	icon := f.Icon
	if icon == "" {
		icon = " "
	}
	return fmt.Sprintf("[%s] %s %s", name, toneColor(f.Tone).Sprint(icon), toneColor(f.Tone).Sprint(body))
}

func toneColor(t Tone) *color.Color {
	switch t {
	case ToneRunning:
		return color.New(color.FgGreen, color.Bold)
	case ToneWarning:
		return color.New(color.FgYellow)
	case ToneError:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.Reset)
	}
}

type boardKey struct {
	board *Board
	name  string
}

func (k *boardKey) Render(f Face) { k.board.render(k.name, f) }
