package fetch

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// googleRateReasons are the error reasons Google APIs attach to 403 responses
// when a per-user or per-project quota is exhausted.
var googleRateReasons = []string{"rateLimitExceeded", "userRateLimitExceeded"}

// FromGoogle maps a *googleapi.Error onto the fetch error types: 429 and quota
// 403s become a *RateLimitError, any other status a *StatusError. Other errors
// pass through unchanged.
func FromGoogle(err error, now time.Time) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	msg := gerr.Message
	if msg == "" {
		msg = strings.TrimSpace(gerr.Body)
	}
	se := &StatusError{Status: gerr.Code, Body: msg}

	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return &RateLimitError{Reset: retryAt(gerr.Header, now), Err: se}
	case gerr.Code == http.StatusForbidden && hasGoogleRateReason(gerr):
		return &RateLimitError{Reset: retryAt(gerr.Header, now), Err: se}
	}
	return se
}

func hasGoogleRateReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		for _, reason := range googleRateReasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	return false
}

// retryAt reads Retry-After (seconds); zero when absent.
func retryAt(h http.Header, now time.Time) time.Time {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return time.Time{}
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(sec) * time.Second)
}
