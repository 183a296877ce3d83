// Package drive exports the user's Google Docs activity through the Drive
// Activity API.
package drive

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/Afrawles/devexport/internal/fetch"
	"github.com/Afrawles/devexport/internal/window"
	"google.golang.org/api/driveactivity/v2"
	"google.golang.org/api/option"
)

const DefaultPageSize = 100

type Client struct {
	svc      *driveactivity.Service
	pageSize int64
	pacer    *fetch.Pacer
	now      func() time.Time
}

// NewClient wraps an authorized HTTP client. An empty endpoint selects the
// public API.
func NewClient(ctx context.Context, httpClient *http.Client, endpoint string, pageSize int, pacer *fetch.Pacer) (*Client, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := driveactivity.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive activity service: %w", err)
	}
	return &Client{svc: svc, pageSize: int64(pageSize), pacer: pacer, now: time.Now}, nil
}

// TimeFilter is the activity:query filter covering the whole window.
func TimeFilter(w window.Window) string {
	start, end := w.Bounds()
	return fmt.Sprintf(`time >= "%s" AND time <= "%s"`, window.FormatInstant(start), window.FormatInstant(end))
}

// Activities pages through every activity visible to the user in the window.
// Actor, action and MIME filtering happen client-side.
func (c *Client) Activities(ctx context.Context, w window.Window) iter.Seq2[[]*driveactivity.DriveActivity, error] {
	filter := TimeFilter(w)
	return fetch.Pages(ctx, c.pacer, "driveactivity.activity.query", func(ctx context.Context, cursor string) (fetch.Page[*driveactivity.DriveActivity], error) {
		resp, err := c.query(ctx, &driveactivity.QueryDriveActivityRequest{
			Filter:    filter,
			PageSize:  c.pageSize,
			PageToken: cursor,
		})
		if err != nil {
			return fetch.Page[*driveactivity.DriveActivity]{}, err
		}
		return fetch.Page[*driveactivity.DriveActivity]{Items: resp.Activities, Next: resp.NextPageToken}, nil
	})
}

// Ping issues a one-item query to confirm the credentials carry the scope.
func (c *Client) Ping(ctx context.Context) error {
	return c.pacer.Do(ctx, "driveactivity.activity.query", func(ctx context.Context) error {
		_, err := c.query(ctx, &driveactivity.QueryDriveActivityRequest{PageSize: 1})
		return err
	})
}

func (c *Client) query(ctx context.Context, req *driveactivity.QueryDriveActivityRequest) (*driveactivity.QueryDriveActivityResponse, error) {
	resp, err := c.svc.Activity.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fetch.FromGoogle(err, c.now())
	}
	return resp, nil
}
