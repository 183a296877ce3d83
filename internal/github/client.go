// Package github exports a user's pull requests, issues, reviews and commits
// through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Afrawles/devexport/internal/fetch"
	"github.com/Afrawles/devexport/internal/window"
	"github.com/google/go-github/v57/github"
)

const perPage = 100

// Client wraps the GitHub API client with the shared pacing and backoff.
type Client struct {
	client *github.Client
	pacer  *fetch.Pacer
	now    func() time.Time
}

// NewClient authenticates with token. apiURL overrides the API root, e.g. for
// GitHub Enterprise ("https://ghe.example.com/api/v3/").
func NewClient(token, apiURL string, httpClient *http.Client, pacer *fetch.Pacer) (*Client, error) {
	client := github.NewClient(httpClient).WithAuthToken(token)
	client.UserAgent = "devexport"

	if apiURL != "" {
		base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api url %q: %w", apiURL, err)
		}
		client.BaseURL = base
	}

	return &Client{client: client, pacer: pacer, now: time.Now}, nil
}

// Viewer returns the login the token belongs to.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	var login string
	err := c.do(ctx, "users.get", func(ctx context.Context) error {
		user, _, err := c.client.Users.Get(ctx, "")
		if err != nil {
			return err
		}
		login = user.GetLogin()
		return nil
	})
	return login, err
}

// SearchIssues pages through the issue search results for query.
func (c *Client) SearchIssues(ctx context.Context, query string) iter.Seq2[[]*github.Issue, error] {
	return fetch.Pages(ctx, c.pacer, "search.issues", func(ctx context.Context, cursor string) (fetch.Page[*github.Issue], error) {
		opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: perPage, Page: pageNumber(cursor)}}

		result, resp, err := c.client.Search.Issues(ctx, query, opts)
		if err != nil {
			return fetch.Page[*github.Issue]{}, c.translate(err)
		}
		return fetch.Page[*github.Issue]{Items: result.Issues, Next: nextCursor(resp)}, nil
	})
}

func (c *Client) PullRequest(ctx context.Context, repo string, number int) (*github.PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var pr *github.PullRequest
	err = c.do(ctx, "pulls.get", func(ctx context.Context) error {
		var err error
		pr, _, err = c.client.PullRequests.Get(ctx, owner, name, number)
		return err
	})
	return pr, err
}

// UserRepos lists every repository of user the token can see, most recently
// updated first.
func (c *Client) UserRepos(ctx context.Context, user string) ([]*github.Repository, error) {
	return fetch.Collect(fetch.Pages(ctx, c.pacer, "repos.list", func(ctx context.Context, cursor string) (fetch.Page[*github.Repository], error) {
		opts := &github.RepositoryListOptions{
			Type:        "all",
			Sort:        "updated",
			ListOptions: github.ListOptions{PerPage: perPage, Page: pageNumber(cursor)},
		}

		repos, resp, err := c.client.Repositories.List(ctx, user, opts)
		if err != nil {
			return fetch.Page[*github.Repository]{}, c.translate(err)
		}
		return fetch.Page[*github.Repository]{Items: repos, Next: nextCursor(resp)}, nil
	}))
}

// Commits lists the commits authored by author in repo within the window.
func (c *Client) Commits(ctx context.Context, repo, author string, w window.Window) iter.Seq2[[]*github.RepositoryCommit, error] {
	return func(yield func([]*github.RepositoryCommit, error) bool) {
		owner, name, err := splitRepo(repo)
		if err != nil {
			yield(nil, err)
			return
		}

		since, until := w.Bounds()
		pages := fetch.Pages(ctx, c.pacer, "repos.list_commits", func(ctx context.Context, cursor string) (fetch.Page[*github.RepositoryCommit], error) {
			opts := &github.CommitsListOptions{
				Author:      author,
				Since:       since,
				Until:       until,
				ListOptions: github.ListOptions{PerPage: perPage, Page: pageNumber(cursor)},
			}

			commits, resp, err := c.client.Repositories.ListCommits(ctx, owner, name, opts)
			if err != nil {
				return fetch.Page[*github.RepositoryCommit]{}, c.translate(err)
			}
			return fetch.Page[*github.RepositoryCommit]{Items: commits, Next: nextCursor(resp)}, nil
		})

		for commits, err := range pages {
			if !yield(commits, err) {
				return
			}
		}
	}
}

func (c *Client) do(ctx context.Context, op string, fn func(context.Context) error) error {
	return c.pacer.Do(ctx, op, func(ctx context.Context) error {
		return c.translate(fn(ctx))
	})
}

// translate maps go-github's rate-limit and response errors onto the fetch
// error types so the shared backoff recognizes them.
func (c *Client) translate(err error) error {
	if err == nil {
		return nil
	}

	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		return &fetch.RateLimitError{Reset: rle.Rate.Reset.Time, Err: err}
	}

	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		rl := &fetch.RateLimitError{Err: err}
		if d := abuse.GetRetryAfter(); d > 0 {
			rl.Reset = c.now().Add(d)
		}
		return rl
	}

	var er *github.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		se := &fetch.StatusError{Status: er.Response.StatusCode, Body: er.Message}
		if er.Response.Request != nil {
			se.URL = er.Response.Request.URL.Redacted()
		}
		if se.Status == http.StatusTooManyRequests {
			return &fetch.RateLimitError{Err: se}
		}
		return se
	}

	return err
}

func pageNumber(cursor string) int {
	n, _ := strconv.Atoi(cursor)
	return n
}

func nextCursor(resp *github.Response) string {
	if resp == nil || resp.NextPage == 0 {
		return ""
	}
	return strconv.Itoa(resp.NextPage)
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository %q, want owner/name", repo)
	}
	return owner, name, nil
}
