package fetch

import (
	"errors"
	"fmt"
	"time"
)

// StatusError is a non-2xx API response that is not a rate-limit signal.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
	}
	return fmt.Sprintf("API error (status %d) for %s: %s", e.Status, e.URL, e.Body)
}

// RateLimitError signals an exhausted rate-limit window. Reset is zero when
// the upstream did not say when the window reopens.
type RateLimitError struct {
	Reset time.Time
	Err   error
}

func (e *RateLimitError) Error() string {
	msg := "rate limited"
	if !e.Reset.IsZero() {
		msg = fmt.Sprintf("rate limited until %s", e.Reset.UTC().Format(time.RFC3339))
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AsRateLimit finds a *RateLimitError anywhere in err's chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

func IsRateLimited(err error) bool {
	_, ok := AsRateLimit(err)
	return ok
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}
