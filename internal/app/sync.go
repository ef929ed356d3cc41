package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
)

// Syncer upserts reminder events into one calendar
type Syncer struct {
	service    CalendarService
	calendarID string
	location   *time.Location
	timeout    time.Duration
}

// NewSyncer creates a syncer; every API call is bounded by timeout
func NewSyncer(service CalendarService, calendarID string, loc *time.Location, timeout time.Duration) *Syncer {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Syncer{service: service, calendarID: calendarID, location: loc, timeout: timeout}
}

// Sync processes descriptors in order. A failure is recorded against its
// descriptor and never stops the batch.
func (s *Syncer) Sync(ctx context.Context, descriptors []EventDescriptor) SyncResult {
	var result SyncResult
	for _, d := range descriptors {
		status, err := s.syncOne(ctx, d)
		result.record(d, status, err)

		day := d.Date.Format(DateLayout)
		switch status {
		case StatusCreated:
			log.Printf("✅ Added %q on %s", d.Title, day)
		case StatusSkipped:
			log.Printf("⚠️  %q on %s already in calendar, skipping", d.Title, day)
		case StatusFailed:
			log.Printf("❌ %q on %s: %v", d.Title, day, err)
		}
	}
	return result
}

func (s *Syncer) syncOne(ctx context.Context, d EventDescriptor) (SyncStatus, error) {
	// A failed lookup means we cannot rule out a duplicate, so nothing is
	// inserted: a missed reminder is better than two.
	existing, err := s.listAround(ctx, d.Date)
	if err != nil {
		return StatusFailed, fmt.Errorf("%w: checking for existing event: %v", ErrCalendarService, err)
	}
	if findDuplicate(existing, d, s.location) != nil {
		return StatusSkipped, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.service.InsertEvent(callCtx, s.calendarID, ToCalendarEvent(d, s.location)); err != nil {
		if IsConflict(err) {
			return StatusSkipped, nil
		}
		return StatusFailed, fmt.Errorf("%w: inserting event: %v", ErrCalendarService, err)
	}
	return StatusCreated, nil
}

// listAround lists events from the day before to the day after date, wide
// enough to catch an equivalent event stored in another time zone
func (s *Syncer) listAround(ctx context.Context, date time.Time) ([]*calendar.Event, error) {
	start := time.Date(date.Year(), date.Month(), date.Day()-1, 0, 0, 0, 0, s.location)
	end := time.Date(date.Year(), date.Month(), date.Day()+2, 0, 0, 0, 0, s.location)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.service.ListEvents(callCtx, s.calendarID, start, end)
}

// findDuplicate returns the first event that is the same reminder: the same
// ID, or the same title (ignoring case) on the same date
func findDuplicate(events []*calendar.Event, d EventDescriptor, loc *time.Location) *calendar.Event {
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.Id == d.ID {
			return ev
		}
		if !strings.EqualFold(strings.TrimSpace(ev.Summary), d.Title) {
			continue
		}
		if day, ok := eventDate(ev, loc); ok && day.Equal(d.Date) {
			return ev
		}
	}
	return nil
}
