// Package calendar exports the meetings on the user's primary Google
// Calendar.
package calendar

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/Afrawles/devexport/internal/fetch"
	"github.com/Afrawles/devexport/internal/window"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const primaryCalendar = "primary"

type Client struct {
	svc   *gcal.Service
	pacer *fetch.Pacer
	now   func() time.Time
}

// NewClient wraps an authorized HTTP client. An empty endpoint selects the
// public API.
func NewClient(ctx context.Context, httpClient *http.Client, endpoint string, pacer *fetch.Pacer) (*Client, error) {
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &Client{svc: svc, pacer: pacer, now: time.Now}, nil
}

// Events lists single (expanded) events in the window ordered by start time.
func (c *Client) Events(ctx context.Context, w window.Window) iter.Seq2[[]*gcal.Event, error] {
	start, end := w.Bounds()
	return fetch.Pages(ctx, c.pacer, "calendar.events.list", func(ctx context.Context, cursor string) (fetch.Page[*gcal.Event], error) {
		call := c.svc.Events.List(primaryCalendar).
			TimeMin(window.FormatInstant(start)).
			TimeMax(window.FormatInstant(end)).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if cursor != "" {
			call = call.PageToken(cursor)
		}

		resp, err := call.Do()
		if err != nil {
			return fetch.Page[*gcal.Event]{}, fetch.FromGoogle(err, c.now())
		}
		return fetch.Page[*gcal.Event]{Items: resp.Items, Next: resp.NextPageToken}, nil
	})
}

// Primary fetches the primary calendar's id; used as a credential check.
func (c *Client) Primary(ctx context.Context) (string, error) {
	var id string
	err := c.pacer.Do(ctx, "calendar.calendars.get", func(ctx context.Context) error {
		cal, err := c.svc.Calendars.Get(primaryCalendar).Context(ctx).Do()
		if err != nil {
			return fetch.FromGoogle(err, c.now())
		}
		id = cal.Id
		return nil
	})
	return id, err
}
