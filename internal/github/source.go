package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Afrawles/devexport/internal/report"
	"github.com/Afrawles/devexport/internal/window"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
)

const maxMessageLen = 300

var Header = []string{
	"category", "repo", "id", "title_or_message", "url", "created_at",
	"state", "merged", "merged_at", "additions", "deletions", "changed_files", "labels",
}

type Source struct {
	client *Client
	user   string
	log    logrus.FieldLogger
}

func NewSource(client *Client, user string, log logrus.FieldLogger) *Source {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Source{client: client, user: user, log: log.WithField("user", user)}
}

func (s *Source) Name() string { return "github" }

func (s *Source) Layout() report.Layout {
	return report.Layout{
		Name:         s.Name(),
		Header:       Header,
		Record:       record,
		EntityColumn: "repo",
		Categories: []report.CategoryColumn{
			{Category: report.CategoryPR, Column: "prs", Label: "PRs"},
			{Category: report.CategoryCommit, Column: "commits", Label: "Commits"},
			{Category: report.CategoryIssue, Column: "issues", Label: "Issues"},
			{Category: report.CategoryReview, Column: "reviews", Label: "Reviews"},
		},
		Template: "github.md.tmpl",
	}
}

func (s *Source) HealthCheck(ctx context.Context) error {
	login, err := s.client.Viewer(ctx)
	if err != nil {
		return fmt.Errorf("github authentication failed: %w", err)
	}
	s.log.WithField("login", login).Debug("token accepted")
	return nil
}

// Rows runs the four queries in order: created PRs, created issues, reviewed
// PRs, then commits in every repository of the user.
func (s *Source) Rows(ctx context.Context, w window.Window) ([]report.Row, error) {
	var rows []report.Row

	prs, err := s.pullRequests(ctx, w)
	if err != nil {
		return nil, err
	}
	rows = append(rows, prs...)

	issues, err := s.search(ctx, Query("is:issue author", s.user, "created", w), issueRow)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	rows = append(rows, issues...)

	reviews, err := s.search(ctx, Query("type:pr reviewed-by", s.user, "updated", w), reviewRow)
	if err != nil {
		return nil, fmt.Errorf("failed to search reviews: %w", err)
	}
	rows = append(rows, reviews...)

	commits, err := s.commits(ctx, w)
	if err != nil {
		return nil, err
	}
	return append(rows, commits...), nil
}

// DedupeKey is (category, repo, id); search can match a PR more than once.
func (s *Source) DedupeKey(r report.Row) string {
	d, _ := r.Detail.(report.CodeDetail)
	return r.Category.String() + "|" + d.Repo + "|" + d.ID
}

// Query builds a search query such as "is:pr author:octocat created:2024-01-01..2024-01-31".
func Query(qualifier, user, dateField string, w window.Window) string {
	return fmt.Sprintf("%s:%s %s:%s..%s", qualifier, user, dateField, w.SinceDate(), w.UntilDate())
}

func (s *Source) search(ctx context.Context, query string, toRow func(*github.Issue) report.Row) ([]report.Row, error) {
	s.log.WithField("query", query).Info("searching")

	var rows []report.Row
	for issues, err := range s.client.SearchIssues(ctx, query) {
		if err != nil {
			return nil, err
		}
		for _, issue := range issues {
			rows = append(rows, toRow(issue))
		}
	}
	return rows, nil
}

// pullRequests adds merge and diff-size fields from the PR detail endpoint.
// A failed detail fetch leaves those fields empty.
func (s *Source) pullRequests(ctx context.Context, w window.Window) ([]report.Row, error) {
	rows, err := s.search(ctx, Query("is:pr author", s.user, "created", w), prRow)
	if err != nil {
		return nil, fmt.Errorf("failed to search pull requests: %w", err)
	}

	for i, row := range rows {
		d := row.Detail.(report.CodeDetail)
		number, _ := strconv.Atoi(strings.TrimPrefix(d.ID, "PR#"))

		pr, err := s.client.PullRequest(ctx, d.Repo, number)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.WithError(err).WithField("pr", d.Repo+"#"+strconv.Itoa(number)).Warn("pull request details unavailable")
			continue
		}
		rows[i].Detail = withPullRequest(d, pr)
	}
	return rows, nil
}

// commits walks the user's repositories. A repository whose commits cannot be
// listed (no access, archived, empty) is skipped.
func (s *Source) commits(ctx context.Context, w window.Window) ([]report.Row, error) {
	repos, err := s.client.UserRepos(ctx, s.user)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	s.log.WithField("repos", len(repos)).Info("listing commits")

	var rows []report.Row
	skipped := 0
	for _, repo := range repos {
		full := repo.GetFullName()
		for commits, err := range s.client.Commits(ctx, full, s.user, w) {
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.log.WithError(err).WithField("repo", full).Debug("skipping repository")
				skipped++
				break
			}
			for _, c := range commits {
				rows = append(rows, commitRow(full, c))
			}
		}
	}

	if skipped > 0 {
		s.log.WithField("skipped", skipped).Info("repositories skipped while listing commits")
	}
	return rows, nil
}

func prRow(issue *github.Issue) report.Row {
	repo := RepoFromURL(issue.GetRepositoryURL())
	return report.NewRow(issue.GetCreatedAt().Time, report.CategoryPR, repo, issue.GetTitle(), issue.GetHTMLURL(), report.CodeDetail{
		Repo: repo,
		ID:   "PR#" + strconv.Itoa(issue.GetNumber()),
	})
}

func issueRow(issue *github.Issue) report.Row {
	repo := RepoFromURL(issue.GetRepositoryURL())
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}
	return report.NewRow(issue.GetCreatedAt().Time, report.CategoryIssue, repo, issue.GetTitle(), issue.GetHTMLURL(), report.CodeDetail{
		Repo:   repo,
		ID:     "Issue#" + strconv.Itoa(issue.GetNumber()),
		State:  issue.GetState(),
		Labels: labels,
	})
}

// reviewRow dates a review by the PR's last update; search does not say when
// the review itself happened.
func reviewRow(issue *github.Issue) report.Row {
	repo := RepoFromURL(issue.GetRepositoryURL())
	return report.NewRow(issue.GetUpdatedAt().Time, report.CategoryReview, repo, issue.GetTitle(), issue.GetHTMLURL(), report.CodeDetail{
		Repo:  repo,
		ID:    "PR#" + strconv.Itoa(issue.GetNumber()),
		State: issue.GetState(),
	})
}

func commitRow(repo string, c *github.RepositoryCommit) report.Row {
	sha := c.GetSHA()
	link := c.GetHTMLURL()
	if link == "" {
		link = "https://github.com/" + repo + "/commit/" + sha
	}
	id := sha
	if len(id) > 12 {
		id = id[:12]
	}
	ts := c.GetCommit().GetAuthor().GetDate().Time
	return report.NewRow(ts, report.CategoryCommit, repo, CommitTitle(c.GetCommit().GetMessage()), link, report.CodeDetail{
		Repo: repo,
		ID:   id,
	})
}

func withPullRequest(d report.CodeDetail, pr *github.PullRequest) report.CodeDetail {
	merged := pr.MergedAt != nil
	additions, deletions, changed := pr.GetAdditions(), pr.GetDeletions(), pr.GetChangedFiles()

	d.State = pr.GetState()
	d.Merged = &merged
	d.MergedAt = pr.GetMergedAt().Time
	d.Additions = &additions
	d.Deletions = &deletions
	d.ChangedFiles = &changed
	return d
}

// CommitTitle keeps the first line of a commit message, capped at 300 characters.
func CommitTitle(message string) string {
	title, _, _ := strings.Cut(message, "\n")
	title = strings.TrimRight(title, "\r")
	if r := []rune(title); len(r) > maxMessageLen {
		title = string(r[:maxMessageLen])
	}
	return title
}

// RepoFromURL returns "owner/name" from the last two path segments of an API
// repository URL.
func RepoFromURL(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return strings.Join(parts, "/")
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

func record(r report.Row) []string {
	d, _ := r.Detail.(report.CodeDetail)
	return []string{
		r.Category.String(),
		d.Repo,
		d.ID,
		r.Title,
		r.URL,
		r.Instant(),
		d.State,
		formatBool(d.Merged),
		window.FormatInstant(d.MergedAt),
		formatInt(d.Additions),
		formatInt(d.Deletions),
		formatInt(d.ChangedFiles),
		strings.Join(d.Labels, ","),
	}
}

// formatBool writes True or False, or "" when the PR detail is missing.
func formatBool(b *bool) string {
	switch {
	case b == nil:
		return ""
	case *b:
		return "True"
	default:
		return "False"
	}
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
