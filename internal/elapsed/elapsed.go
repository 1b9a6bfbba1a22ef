// Package elapsed formats running durations for key faces.
//
// Timestamps are written without a zone suffix and read back as wall-clock
// local time. When the service echoes a suffix (Z, +hhmm, -hhmm) it is
// stripped and its value is not applied.
package elapsed

import (
	"fmt"
	"strings"
	"time"

	"kimai-deck/internal/domain"
)

// Layout is the naive timestamp layout used on the wire.
const Layout = "2006-01-02T15:04:05"

// Unknown is rendered when a begin timestamp cannot be parsed.
const Unknown = "??:??"

// FormatBegin renders t as a naive local timestamp.
func FormatBegin(t time.Time) string {
	return t.Format(Layout)
}

// ParseBegin parses a begin timestamp in loc, discarding any zone suffix.
func ParseBegin(s string, loc *time.Location) (time.Time, error) {
	clean := stripZone(strings.TrimSpace(s))
	t, err := time.ParseInLocation(Layout, clean, loc)
	if err != nil {
		return time.Time{}, &domain.ParseError{What: "begin timestamp", Err: err}
	}
	return t, nil
}

func stripZone(s string) string {
	switch {
	case strings.Contains(s, "+"):
		return s[:strings.Index(s, "+")]
	case strings.HasSuffix(s, "Z"):
		return strings.TrimSuffix(s, "Z")
	case strings.Count(s, "-") > 2:
		// Two dashes belong to the date; a third one starts an offset.
		return s[:strings.LastIndex(s, "-")]
	}
	return s
}

// Format renders d as zero-padded HH:MM. Seconds are dropped and negative
// durations render as 00:00.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Render returns the elapsed time between begin and now, or Unknown when
// begin is malformed. begin is interpreted in now's location.
func Render(begin string, now time.Time) string {
	t, err := ParseBegin(begin, now.Location())
	if err != nil {
		return Unknown
	}
	return Format(now.Sub(t))
}
