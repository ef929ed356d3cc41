package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// eventNamespace scopes the name-based UUIDs used as event IDs
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/klabast/wb-services/bin-reminder"))

// MapEntry derives the reminder event for a collection: an all-day event
// the day before pickup with email and popup reminders a day ahead of it
func MapEntry(e CollectionEntry) EventDescriptor {
	title := e.BinType.String() + " Collection"
	date := DateOf(e.CollectionDate).AddDate(0, 0, -1)

	return EventDescriptor{
		ID:    EventID(title, date),
		Title: title,
		Description: fmt.Sprintf("Put the %s bin out tonight. Collection is on %s.",
			strings.ToLower(e.BinType.String()), e.CollectionDate.Format("Monday 2 January 2006")),
		Date: date,
		Reminders: []Reminder{
			{Method: ReminderEmail, MinutesBefore: ReminderLeadMinutes},
			{Method: ReminderPopup, MinutesBefore: ReminderLeadMinutes},
		},
		Entry: e,
	}
}

// MapEntries maps entries in order
func MapEntries(entries []CollectionEntry) []EventDescriptor {
	out := make([]EventDescriptor, 0, len(entries))
	for _, e := range entries {
		out = append(out, MapEntry(e))
	}
	return out
}

// EventID is a stable identifier for a title on a date. Its 32 hex digits
// fit Google Calendar's base32hex event ID alphabet.
func EventID(title string, date time.Time) string {
	id := uuid.NewSHA1(eventNamespace, []byte(strings.ToLower(title)+"|"+date.Format(DateLayout)))
	return strings.ReplaceAll(id.String(), "-", "")
}
