package window

import (
	"strings"
	"time"
)

// layouts accepted by ToInstant, most specific first. Zone-less date-times and
// bare dates are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	DateLayout,
}

// ToInstant converts an API timestamp into a UTC instant. The bool is false
// when the input is empty or not in any known format.
func ToInstant(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatInstant renders t as YYYY-MM-DDTHH:MM:SSZ, or "" for the zero time.
func FormatInstant(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(InstantLayout)
}

// DateOf returns the UTC calendar date of t, or "" for the zero time.
func DateOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// Normalize is ToInstant followed by FormatInstant.
func Normalize(raw string) string {
	t, _ := ToInstant(raw)
	return FormatInstant(t)
}
