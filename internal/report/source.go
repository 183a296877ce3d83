package report

import (
	"context"
	"time"

	"github.com/Afrawles/devexport/internal/window"
)

// Category is the closed set of activity kinds across all exporters.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryMeeting
	CategoryCreate
	CategoryEdit
	CategoryComment
	CategoryPR
	CategoryCommit
	CategoryIssue
	CategoryReview
)

// names are the values written to the CSV category and action columns
var categoryNames = [...]string{
	CategoryUnknown: "UNKNOWN",
	CategoryMeeting: "MEETING",
	CategoryCreate:  "CREATE",
	CategoryEdit:    "EDIT",
	CategoryComment: "COMMENT",
	CategoryPR:      "PR",
	CategoryCommit:  "Commit",
	CategoryIssue:   "Issue",
	CategoryReview:  "Review",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CategoryUnknown]
	}
	return categoryNames[c]
}

// ParseCategory is the inverse of String.
func ParseCategory(s string) (Category, bool) {
	for i, name := range categoryNames {
		if i != int(CategoryUnknown) && name == s {
			return Category(i), true
		}
	}
	return CategoryUnknown, false
}

// Row is one normalized activity record.
type Row struct {
	Date      string
	Timestamp time.Time
	Category  Category
	EntityID  string
	Title     string
	URL       string
	Detail    Detail
}

// NewRow derives Date from ts; a zero ts leaves both empty.
func NewRow(ts time.Time, category Category, entityID, title, url string, detail Detail) Row {
	return Row{
		Date:      window.DateOf(ts),
		Timestamp: ts,
		Category:  category,
		EntityID:  entityID,
		Title:     title,
		URL:       url,
		Detail:    detail,
	}
}

// Instant renders the row timestamp as YYYY-MM-DDTHH:MM:SSZ, "" if unknown.
func (r Row) Instant() string {
	return window.FormatInstant(r.Timestamp)
}

// Detail carries the source-specific columns of a Row.
type Detail interface {
	detail()
}

type MeetingDetail struct {
	EventID   string
	End       time.Time
	MeetLink  string
	Organizer string
	Attendees int
}

type DocDetail struct {
	Action   string
	MimeType string
}

type CodeDetail struct {
	Repo         string
	ID           string
	State        string
	Merged       *bool
	MergedAt     time.Time
	Additions    *int
	Deletions    *int
	ChangedFiles *int
	Labels       []string
}

func (MeetingDetail) detail() {}
func (DocDetail) detail()     {}
func (CodeDetail) detail()    {}

// CategoryColumn names the rollup column for one category.
type CategoryColumn struct {
	Category Category
	Column   string
	Label    string
}

// Layout describes how a source's rows and rollups are rendered.
type Layout struct {
	Name         string
	Header       []string
	Record       func(Row) []string
	EntityColumn string
	Categories   []CategoryColumn
	Template     string
}

// Source is one exporter's upstream API.
type Source interface {
	Name() string
	Layout() Layout
	HealthCheck(ctx context.Context) error
	Rows(ctx context.Context, w window.Window) ([]Row, error)
}

// Deduper is implemented by sources whose API can report the same activity twice.
type Deduper interface {
	DedupeKey(Row) string
}
