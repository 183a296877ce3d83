package calendar

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Afrawles/devexport/internal/report"
	"github.com/Afrawles/devexport/internal/window"
	"github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
)

const untitled = "(No title)"

var Header = []string{"date", "start", "end", "title", "link", "meet_link", "organizer", "attendees_count"}

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

func (s *Source) Name() string { return "calendar" }

func (s *Source) Layout() report.Layout {
	return report.Layout{
		Name:         s.Name(),
		Header:       Header,
		Record:       record,
		EntityColumn: "event_id",
		Categories: []report.CategoryColumn{
			{Category: report.CategoryMeeting, Column: "meetings", Label: "Meetings"},
		},
		Template: "calendar.md.tmpl",
	}
}

func (s *Source) HealthCheck(ctx context.Context) error {
	id, err := s.client.Primary(ctx)
	if err != nil {
		return err
	}
	s.log.WithField("calendar", id).Debug("calendar reachable")
	return nil
}

func (s *Source) Rows(ctx context.Context, w window.Window) ([]report.Row, error) {
	var rows []report.Row
	page := 0
	for events, err := range s.client.Events(ctx, w) {
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		page++
		s.log.WithFields(logrus.Fields{"page": page, "events": len(events)}).Debug("events page")

		for _, ev := range events {
			rows = append(rows, Normalize(ev))
		}
	}
	return rows, nil
}

// DedupeKey separates instances of one series, which share an entity id.
func (s *Source) DedupeKey(r report.Row) string {
	d, _ := r.Detail.(report.MeetingDetail)
	return d.EventID + "|" + r.Instant()
}

// Normalize turns an event into a meeting row. Every event is accepted.
func Normalize(ev *gcal.Event) report.Row {
	start, _ := eventTime(ev.Start)
	end, _ := eventTime(ev.End)

	title := strings.TrimSpace(ev.Summary)
	if title == "" {
		title = untitled
	}

	entity := ev.RecurringEventId
	if entity == "" {
		entity = ev.Id
	}

	detail := report.MeetingDetail{
		EventID:   ev.Id,
		End:       end,
		MeetLink:  meetLink(ev.ConferenceData),
		Attendees: len(ev.Attendees),
	}
	if ev.Organizer != nil {
		detail.Organizer = ev.Organizer.Email
	}

	row := report.NewRow(start, report.CategoryMeeting, entity, title, ev.HtmlLink, detail)
	row.Date = localDate(ev.Start, start)
	return row
}

// localDate is the day the meeting falls on in its own UTC offset, so an
// evening meeting west of UTC stays on its calendar day.
func localDate(t *gcal.EventDateTime, start time.Time) string {
	if t != nil && t.DateTime != "" {
		if local, err := time.Parse(time.RFC3339, strings.TrimSpace(t.DateTime)); err == nil {
			return local.Format(window.DateLayout)
		}
	}
	return window.DateOf(start)
}

// eventTime reads dateTime, or date for all-day events (UTC midnight).
func eventTime(t *gcal.EventDateTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		return window.ToInstant(t.DateTime)
	}
	if t.Date != "" {
		return window.ToInstant(t.Date)
	}
	return time.Time{}, false
}

// meetLink prefers the video entry point and falls back to the first one.
func meetLink(conf *gcal.ConferenceData) string {
	if conf == nil || len(conf.EntryPoints) == 0 {
		return ""
	}
	for _, ep := range conf.EntryPoints {
		if ep != nil && strings.EqualFold(ep.EntryPointType, "video") {
			return ep.Uri
		}
	}
	if first := conf.EntryPoints[0]; first != nil {
		return first.Uri
	}
	return ""
}

func record(r report.Row) []string {
	d, _ := r.Detail.(report.MeetingDetail)
	return []string{
		r.Date,
		r.Instant(),
		window.FormatInstant(d.End),
		r.Title,
		r.URL,
		d.MeetLink,
		d.Organizer,
		strconv.Itoa(d.Attendees),
	}
}
