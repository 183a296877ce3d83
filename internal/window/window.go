// Package window resolves the reporting window and normalizes the timestamp
// formats returned by the upstream APIs into UTC instants.
package window

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	InstantLayout = "2006-01-02T15:04:05Z"

	// DefaultDays is the trailing window used when no explicit range is given.
	DefaultDays = 182
)

// Window is an inclusive range of calendar dates (UTC).
type Window struct {
	Since time.Time
	Until time.Time
}

// Default returns [today-182d, today].
func Default(today time.Time) Window {
	until := dateOnly(today)
	return Window{
		Since: until.AddDate(0, 0, -DefaultDays),
		Until: until,
	}
}

// Resolve parses the --since/--until arguments. If either one is missing both
// fall back to the default trailing window.
func Resolve(since, until string, today time.Time) (Window, error) {
	since, until = strings.TrimSpace(since), strings.TrimSpace(until)
	if since == "" || until == "" {
		return Default(today), nil
	}

	s, err := time.Parse(DateLayout, since)
	if err != nil {
		return Window{}, fmt.Errorf("invalid since date %q: %w", since, err)
	}
	u, err := time.Parse(DateLayout, until)
	if err != nil {
		return Window{}, fmt.Errorf("invalid until date %q: %w", until, err)
	}
	if s.After(u) {
		return Window{}, fmt.Errorf("since %s is after until %s", since, until)
	}

	return Window{Since: s, Until: u}, nil
}

func (w Window) SinceDate() string { return w.Since.Format(DateLayout) }
func (w Window) UntilDate() string { return w.Until.Format(DateLayout) }

// Start is the first instant of the window (since, 00:00:00Z).
func (w Window) Start() time.Time {
	return dateOnly(w.Since)
}

// End is the last whole second of the window (until, 23:59:59Z).
func (w Window) End() time.Time {
	return dateOnly(w.Until).Add(24*time.Hour - time.Second)
}

// Bounds returns Start and End together, the form the APIs take as a range.
func (w Window) Bounds() (time.Time, time.Time) {
	return w.Start(), w.End()
}

// Contains reports whether a YYYY-MM-DD date lies within the window.
func (w Window) Contains(date string) bool {
	if date == "" {
		return false
	}
	return date >= w.SinceDate() && date <= w.UntilDate()
}

// Days is the number of calendar days covered, both ends included.
func (w Window) Days() int {
	return int(dateOnly(w.Until).Sub(dateOnly(w.Since)).Hours()/24) + 1
}

func (w Window) String() string {
	return fmt.Sprintf("%s .. %s", w.SinceDate(), w.UntilDate())
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
