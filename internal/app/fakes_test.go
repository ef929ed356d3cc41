package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// fakeBrowser replays a canned council page
type fakeBrowser struct {
	suggestions []string
	rows        []ScrapedRow

	navigateErr error
	readErr     error

	navigated string
	selected  string
	closed    int
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string) error {
	b.navigated = url
	return b.navigateErr
}

func (b *fakeBrowser) FindAndSelect(ctx context.Context, addr Address) error {
	i, err := addr.PickSuggestion(b.suggestions)
	if err != nil {
		return err
	}
	b.selected = b.suggestions[i]
	return nil
}

func (b *fakeBrowser) ReadRows(ctx context.Context) ([]ScrapedRow, error) {
	return b.rows, b.readErr
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

// memCalendar is an in-memory calendar that behaves like the API for the
// calls the syncer makes, including 409 on a reused event ID
type memCalendar struct {
	mu sync.Mutex

	events  []*calendar.Event
	deleted []*calendar.Event // not listed, but their IDs still conflict

	listErr   error
	rejectIDs map[string]error

	listCalls int
	inserted  []string
}

func (m *memCalendar) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	var out []*calendar.Event
	for _, ev := range m.events {
		start, ok := eventStart(ev, timeMin.Location())
		if ok && !start.Before(timeMin) && start.Before(timeMax) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memCalendar) InsertEvent(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted = append(m.inserted, ev.Id)

	if err, ok := m.rejectIDs[ev.Id]; ok {
		return nil, err
	}
	for _, existing := range append(append([]*calendar.Event{}, m.events...), m.deleted...) {
		if ev.Id != "" && existing.Id == ev.Id {
			return nil, &googleapi.Error{Code: http.StatusConflict, Message: "The requested identifier already exists."}
		}
	}
	m.events = append(m.events, ev)
	return ev, nil
}

// eventStart is the instant an event starts; all-day events start at
// midnight in loc
func eventStart(ev *calendar.Event, loc *time.Location) (time.Time, bool) {
	if ev.Start == nil {
		return time.Time{}, false
	}
	if ev.Start.Date != "" {
		t, err := time.ParseInLocation(DateLayout, ev.Start.Date, loc)
		return t, err == nil
	}
	t, err := time.Parse(time.RFC3339, ev.Start.DateTime)
	return t, err == nil
}

// sydney stands in for Australia/Sydney without needing tzdata
var sydney = time.FixedZone("AEST", 10*60*60)

func entry(bin BinType, y int, m time.Month, d int) CollectionEntry {
	return CollectionEntry{BinType: bin, CollectionDate: NewDate(y, m, d)}
}
