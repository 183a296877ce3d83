package drive

import (
	"context"
	"fmt"
	"strings"

	"github.com/Afrawles/devexport/internal/report"
	"github.com/Afrawles/devexport/internal/window"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/driveactivity/v2"
)

const DocsMimeType = "application/vnd.google-apps.document"

var Header = []string{"date", "timestamp", "action", "title", "url", "file_id", "mimeType"}

var acceptedActions = map[string]report.Category{
	"CREATE":  report.CategoryCreate,
	"EDIT":    report.CategoryEdit,
	"COMMENT": report.CategoryComment,
}

type Source struct {
	client *Client
	log    logrus.FieldLogger
}

func NewSource(client *Client, log logrus.FieldLogger) *Source {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Source{client: client, log: log}
}

func (s *Source) Name() string { return "docs" }

func (s *Source) Layout() report.Layout {
	return report.Layout{
		Name:         s.Name(),
		Header:       Header,
		Record:       record,
		EntityColumn: "file_id",
		Categories: []report.CategoryColumn{
			{Category: report.CategoryCreate, Column: "creates", Label: "Create"},
			{Category: report.CategoryEdit, Column: "edits", Label: "Edit"},
			{Category: report.CategoryComment, Column: "comments", Label: "Comment"},
		},
		Template: "docs.md.tmpl",
	}
}

func (s *Source) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Source) Rows(ctx context.Context, w window.Window) ([]report.Row, error) {
	var rows []report.Row
	seen, page := 0, 0
	for activities, err := range s.client.Activities(ctx, w) {
		if err != nil {
			return nil, fmt.Errorf("failed to query drive activity: %w", err)
		}
		page++
		seen += len(activities)

		for _, a := range activities {
			if row, ok := Normalize(a); ok {
				rows = append(rows, row)
			}
		}
		s.log.WithFields(logrus.Fields{"page": page, "activities": len(activities)}).Debug("activity page")
	}

	s.log.WithFields(logrus.Fields{"activities": seen, "accepted": len(rows)}).Debug("drive activity filtered")
	return rows, nil
}

// DedupeKey is (timestamp, action, file id); the API can return the same
// action in more than one consolidated activity.
func (s *Source) DedupeKey(r report.Row) string {
	d, _ := r.Detail.(report.DocDetail)
	return r.Instant() + "|" + d.Action + "|" + r.EntityID
}

// Normalize accepts an activity only when the current user is an actor, the
// action is CREATE, EDIT or COMMENT, and the target is a Google Doc.
func Normalize(a *driveactivity.DriveActivity) (report.Row, bool) {
	if a == nil || !byCurrentUser(a.Actors) {
		return report.Row{}, false
	}

	action := ActionLabel(a.PrimaryActionDetail)
	category, ok := acceptedActions[action]
	if !ok {
		return report.Row{}, false
	}

	item := primaryItem(a.Targets)
	if item.Name == "" || item.MimeType != DocsMimeType {
		return report.Row{}, false
	}

	title := item.Title
	if title == "" {
		title = item.Name
	}
	fileID := FileID(item.Name)
	ts, _ := window.ToInstant(activityTime(a))

	return report.NewRow(ts, category, fileID, title, DocURL(fileID), report.DocDetail{
		Action:   action,
		MimeType: item.MimeType,
	}), true
}

// ActionLabel names the primary action, or OTHER. When more than one detail
// is set the first in create, edit, comment, rename, move, restore, delete,
// permission change order wins.
func ActionLabel(d *driveactivity.ActionDetail) string {
	switch {
	case d == nil:
		return "OTHER"
	case d.Create != nil:
		return "CREATE"
	case d.Edit != nil:
		return "EDIT"
	case d.Comment != nil:
		return "COMMENT"
	case d.Rename != nil:
		return "RENAME"
	case d.Move != nil:
		return "MOVE"
	case d.Restore != nil:
		return "RESTORE"
	case d.Delete != nil:
		return "DELETE"
	case d.PermissionChange != nil:
		return "PERMISSIONCHANGE"
	}
	return "OTHER"
}

// FileID is the part of an "items/<id>" resource name after the last slash.
func FileID(itemName string) string {
	if i := strings.LastIndex(itemName, "/"); i >= 0 {
		return itemName[i+1:]
	}
	return itemName
}

func DocURL(fileID string) string {
	if fileID == "" {
		return ""
	}
	return "https://docs.google.com/document/d/" + fileID + "/edit"
}

func byCurrentUser(actors []*driveactivity.Actor) bool {
	for _, actor := range actors {
		if actor != nil && actor.User != nil && actor.User.KnownUser != nil && actor.User.KnownUser.IsCurrentUser {
			return true
		}
	}
	return false
}

// primaryItem is the first target naming a drive item. When none does, the
// last target's fields are returned with an empty name.
func primaryItem(targets []*driveactivity.Target) driveactivity.DriveItem {
	var item driveactivity.DriveItem
	for _, t := range targets {
		di := targetItem(t)
		if di == nil {
			item = driveactivity.DriveItem{}
			continue
		}
		item = *di
		if item.Name != "" {
			return item
		}
	}
	return item
}

// targetItem is the drive item a target names; a comment target names the
// file it was left on.
func targetItem(t *driveactivity.Target) *driveactivity.DriveItem {
	switch {
	case t == nil:
		return nil
	case t.DriveItem != nil:
		return t.DriveItem
	case t.FileComment != nil:
		return t.FileComment.Parent
	}
	return nil
}

func activityTime(a *driveactivity.DriveActivity) string {
	if a.Timestamp != "" {
		return a.Timestamp
	}
	if a.TimeRange == nil {
		return ""
	}
	if a.TimeRange.EndTime != "" {
		return a.TimeRange.EndTime
	}
	return a.TimeRange.StartTime
}

func record(r report.Row) []string {
	d, _ := r.Detail.(report.DocDetail)
	return []string{r.Date, r.Instant(), d.Action, r.Title, r.URL, r.EntityID, d.MimeType}
}
