package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// CalendarService is the part of the calendar API the sync uses
type CalendarService interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
}

// GoogleCalendar talks to the Google Calendar v3 API
type GoogleCalendar struct {
	svc *calendar.Service
}

// NewGoogleCalendar wraps an authorised HTTP client
func NewGoogleCalendar(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*GoogleCalendar, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: creating calendar client: %v", ErrEnvironment, err)
	}
	return &GoogleCalendar{svc: svc}, nil
}

// ListEvents returns every event overlapping [timeMin, timeMax)
func (g *GoogleCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	var events []*calendar.Event
	err := g.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		Pages(ctx, func(page *calendar.Events) error {
			events = append(events, page.Items...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// InsertEvent creates event
func (g *GoogleCalendar) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return g.svc.Events.Insert(calendarID, event).Context(ctx).Do()
}

// IsConflict reports a 409 from the API, which Insert returns when an
// event with the same ID already exists (even a deleted one)
func IsConflict(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

// ToCalendarEvent builds the API representation of a descriptor: an
// all-day event whose exclusive end is the following day
func ToCalendarEvent(d EventDescriptor, loc *time.Location) *calendar.Event {
	overrides := make([]*calendar.EventReminder, 0, len(d.Reminders))
	for _, r := range d.Reminders {
		overrides = append(overrides, &calendar.EventReminder{
			Method:  string(r.Method),
			Minutes: int64(r.MinutesBefore),
		})
	}

	return &calendar.Event{
		Id:          d.ID,
		Summary:     d.Title,
		Description: d.Description,
		Start: &calendar.EventDateTime{
			Date:     d.Date.Format(DateLayout),
			TimeZone: loc.String(),
		},
		End: &calendar.EventDateTime{
			Date:     d.Date.AddDate(0, 0, 1).Format(DateLayout),
			TimeZone: loc.String(),
		},
		Transparency: "transparent",
		Reminders: &calendar.EventReminders{
			UseDefault:      false,
			Overrides:       overrides,
			ForceSendFields: []string{"UseDefault"},
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				"binType":        d.Entry.BinType.String(),
				"collectionDate": d.Entry.CollectionDate.Format(DateLayout),
				"leadMinutes":    strconv.Itoa(ReminderLeadMinutes),
			},
		},
	}
}

// eventDate is the calendar date an API event starts on, as seen in loc
func eventDate(ev *calendar.Event, loc *time.Location) (time.Time, bool) {
	if ev.Start == nil {
		return time.Time{}, false
	}
	if ev.Start.Date != "" {
		t, err := time.Parse(DateLayout, ev.Start.Date)
		return t, err == nil
	}
	if ev.Start.DateTime != "" {
		t, err := time.Parse(time.RFC3339, ev.Start.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return DateOf(t.In(loc)), true
	}
	return time.Time{}, false
}
