package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Afrawles/devexport/internal/fetch"
	"github.com/Afrawles/devexport/internal/report"
	"github.com/Afrawles/devexport/internal/window"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindow() window.Window {
	return window.Window{
		Since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	srv   *httptest.Server
	slept []time.Duration
	src   *Source
}

func newFixture(t *testing.T, mux *http.ServeMux) *fixture {
	t.Helper()
	f := &fixture{srv: httptest.NewServer(mux)}
	t.Cleanup(f.srv.Close)

	log, _ := test.NewNullLogger()
	pacer := fetch.NewPacer(log, nil)
	pacer.Backoff.Sleep = func(_ context.Context, d time.Duration) error {
		f.slept = append(f.slept, d)
		return nil
	}

	client, err := NewClient("t0ken", f.srv.URL, f.srv.Client(), pacer)
	require.NoError(t, err)
	f.src = NewSource(client, "octo", log)
	return f
}

func issueJSON(repo string, number int, title, created, updated, extra string) string {
	return fmt.Sprintf(`{"number":%d,"title":%q,"html_url":"https://github.com/%s/pull/%d",
		"repository_url":"https://api.github.com/repos/%s","created_at":%q,"updated_at":%q,"state":"open"%s}`,
		number, title, repo, number, repo, created, updated, extra)
}

func searchResult(items ...string) string {
	return fmt.Sprintf(`{"total_count":%d,"items":[%s]}`, len(items), strings.Join(items, ","))
}

func activityMux(t *testing.T) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t0ken", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"login":"octo"}`))
	})

	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		switch {
		case strings.HasPrefix(q, "is:pr author:octo created:2024-01-01..2024-01-31"):
			if r.URL.Query().Get("page") == "" {
				w.Header().Set("Link", fmt.Sprintf(`<%s/search/issues?q=x&page=2>; rel="next"`, "http://"+r.Host))
				_, _ = w.Write([]byte(searchResult(
					issueJSON("octo/app", 1, "Add feature", "2024-01-05T10:00:00Z", "2024-01-06T10:00:00Z", ""),
				)))
				return
			}
			_, _ = w.Write([]byte(searchResult(
				issueJSON("other/lib", 2, "Fix typo", "2024-01-07T10:00:00Z", "2024-01-07T11:00:00Z", ""),
			)))
		case strings.HasPrefix(q, "is:issue author:octo"):
			_, _ = w.Write([]byte(searchResult(
				issueJSON("octo/app", 3, "Crash on start", "2024-01-08T10:00:00Z", "2024-01-08T10:00:00Z",
					`,"labels":[{"name":"bug"},{"name":"p1"}]`),
			)))
		case strings.HasPrefix(q, "type:pr reviewed-by:octo updated:2024-01-01..2024-01-31"):
			_, _ = w.Write([]byte(searchResult(
				issueJSON("other/lib", 9, "Refactor", "2023-12-01T10:00:00Z", "2024-01-20T10:00:00Z", ""),
			)))
		default:
			t.Errorf("unexpected query %q", q)
		}
	})

	mux.HandleFunc("/repos/octo/app/pulls/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number":1,"state":"closed","merged":true,"merged_at":"2024-01-09T10:00:00Z",
			"additions":10,"deletions":2,"changed_files":3}`))
	})
	mux.HandleFunc("/repos/other/lib/pulls/2", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Server Error"}`, http.StatusInternalServerError)
	})

	mux.HandleFunc("/users/octo/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all", r.URL.Query().Get("type"))
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		_, _ = w.Write([]byte(`[{"full_name":"octo/app"},{"full_name":"octo/private"}]`))
	})
	mux.HandleFunc("/repos/octo/app/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "octo", r.URL.Query().Get("author"))
		assert.Equal(t, "2024-01-01T00:00:00Z", r.URL.Query().Get("since"))
		assert.Equal(t, "2024-01-31T23:59:59Z", r.URL.Query().Get("until"))
		_, _ = w.Write([]byte(`[
			{"sha":"0123456789abcdef0123","html_url":"https://github.com/octo/app/commit/0123456789abcdef0123",
			 "commit":{"message":"Fix bug\n\nDetails...","author":{"date":"2024-01-12T10:00:00Z"}}},
			{"sha":"fedcba9876543210","commit":{"message":"Tidy","author":{"date":"2024-01-13T10:00:00Z"}}}
		]`))
	})
	mux.HandleFunc("/repos/octo/private/commits", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})
	return mux
}

func byID(rows []report.Row) map[string]report.Row {
	out := make(map[string]report.Row)
	for _, r := range rows {
		d := r.Detail.(report.CodeDetail)
		out[r.Category.String()+" "+d.ID] = r
	}
	return out
}

func TestSourceRows(t *testing.T) {
	f := newFixture(t, activityMux(t))
	require.NoError(t, f.src.HealthCheck(context.Background()))

	rows, err := f.src.Rows(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, rows, 6)

	got := byID(rows)

	pr := got["PR PR#1"]
	assert.Equal(t, "octo/app", pr.EntityID)
	assert.Equal(t, []string{
		"PR", "octo/app", "PR#1", "Add feature", "https://github.com/octo/app/pull/1", "2024-01-05T10:00:00Z",
		"closed", "True", "2024-01-09T10:00:00Z", "10", "2", "3", "",
	}, record(pr))

	degraded := got["PR PR#2"]
	assert.Equal(t, []string{
		"PR", "other/lib", "PR#2", "Fix typo", "https://github.com/other/lib/pull/2", "2024-01-07T10:00:00Z",
		"", "", "", "", "", "", "",
	}, record(degraded))

	issue := got["Issue Issue#3"]
	assert.Equal(t, "open", issue.Detail.(report.CodeDetail).State)
	assert.Equal(t, "bug,p1", record(issue)[12])

	review := got["Review PR#9"]
	assert.Equal(t, "2024-01-20", review.Date)

	commit := got["Commit 0123456789ab"]
	assert.Equal(t, "Fix bug", commit.Title)
	assert.Equal(t, "https://github.com/octo/app/commit/0123456789abcdef0123", commit.URL)

	tidy := got["Commit fedcba987654"]
	assert.Equal(t, "https://github.com/octo/app/commit/fedcba9876543210", tidy.URL)
	assert.Empty(t, f.slept)
}

func TestSourceRowsSearchFailureIsFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Validation Failed"}`, http.StatusUnprocessableEntity)
	})
	f := newFixture(t, mux)

	_, err := f.src.Rows(context.Background(), testWindow())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, fetch.StatusOf(err))
}

func TestPullRequestDetailsStopOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	details := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchResult(
			issueJSON("octo/app", 1, "One", "2024-01-05T10:00:00Z", "2024-01-05T10:00:00Z", ""),
			issueJSON("octo/app", 2, "Two", "2024-01-06T10:00:00Z", "2024-01-06T10:00:00Z", ""),
			issueJSON("octo/app", 3, "Three", "2024-01-07T10:00:00Z", "2024-01-07T10:00:00Z", ""),
		)))
	})
	mux.HandleFunc("/repos/octo/app/pulls/", func(w http.ResponseWriter, r *http.Request) {
		details++
		cancel()
		http.Error(w, `{"message":"Server Error"}`, http.StatusInternalServerError)
	})
	f := newFixture(t, mux)

	_, err := f.src.Rows(ctx, testWindow())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, details)
}

func TestRateLimitRetriedOnce(t *testing.T) {
	reset := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)

	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", reset)
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"message":"API rate limit exceeded for user ID 1."}`))
			return
		}
		_, _ = w.Write([]byte(`{"login":"octo"}`))
	})
	f := newFixture(t, mux)

	require.NoError(t, f.src.HealthCheck(context.Background()))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{fetch.DefaultFloor}, f.slept)
}

func TestRateLimitTwiceIsFatal(t *testing.T) {
	reset := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)

	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", reset)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded for user ID 1."}`))
	})
	f := newFixture(t, mux)

	err := f.src.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, fetch.IsRateLimited(err))
	assert.Equal(t, 2, calls)
	assert.Len(t, f.slept, 1)
}

func TestCommitTitle(t *testing.T) {
	assert.Equal(t, "Fix bug", CommitTitle("Fix bug\n\nDetails..."))
	assert.Equal(t, "Windows", CommitTitle("Windows\r\nline"))
	assert.Len(t, []rune(CommitTitle(strings.Repeat("é", 400))), 300)
}

func TestRepoFromURL(t *testing.T) {
	assert.Equal(t, "octo/app", RepoFromURL("https://api.github.com/repos/octo/app"))
	assert.Equal(t, "octo/app", RepoFromURL("https://ghe.example.com/api/v3/repos/octo/app/"))
	assert.Equal(t, "app", RepoFromURL("app"))
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "type:pr reviewed-by:octo updated:2024-01-01..2024-01-31",
		Query("type:pr reviewed-by", "octo", "updated", testWindow()))
}

func TestDedupeKey(t *testing.T) {
	src := &Source{}
	issue := &github.Issue{
		Number:        github.Int(9),
		RepositoryURL: github.String("https://api.github.com/repos/octo/app"),
	}

	assert.Equal(t, "Review|octo/app|PR#9", src.DedupeKey(reviewRow(issue)))
	assert.NotEqual(t, src.DedupeKey(prRow(issue)), src.DedupeKey(reviewRow(issue)))
}
