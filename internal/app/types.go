package app

import "time"

// Address identifies the property whose bins are looked up
type Address struct {
	Suburb      string `json:"suburb"`
	Street      string `json:"street"`
	HouseNumber string `json:"house_number"`
}

// BinType is one of the council's collection categories
type BinType int

const (
	Rubbish BinType = iota + 1
	Recycling
	GardenOrganics
)

// BinTypes lists the known categories in display order
var BinTypes = []BinType{Rubbish, Recycling, GardenOrganics}

var binTypeNames = map[BinType]string{
	Rubbish:        "Rubbish",
	Recycling:      "Recycling",
	GardenOrganics: "Garden Organics",
}

func (b BinType) String() string {
	if name, ok := binTypeNames[b]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText renders the display name (used by the JSON exporter)
func (b BinType) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// CollectionEntry is one scraped pickup
type CollectionEntry struct {
	BinType        BinType   `json:"bin_type"`
	CollectionDate time.Time `json:"collection_date"`
}

// ReminderMethod is the notification channel of a reminder
type ReminderMethod string

const (
	ReminderEmail ReminderMethod = "email"
	ReminderPopup ReminderMethod = "popup"
)

// Reminder fires MinutesBefore minutes ahead of the event start
type Reminder struct {
	Method        ReminderMethod `json:"method"`
	MinutesBefore int            `json:"minutes_before"`
}

// EventDescriptor is the calendar event derived from a CollectionEntry
type EventDescriptor struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Reminders   []Reminder      `json:"reminders"`
	Entry       CollectionEntry `json:"entry"`
}

// SyncStatus is the outcome of syncing a single descriptor
type SyncStatus string

const (
	StatusCreated SyncStatus = "created"
	StatusSkipped SyncStatus = "skipped_duplicate"
	StatusFailed  SyncStatus = "failed"
)

// SyncAttempt records what happened to one descriptor, in batch order
type SyncAttempt struct {
	Descriptor EventDescriptor
	Status     SyncStatus
	Err        error
}

// SyncFailure pairs a descriptor with the error that stopped it
type SyncFailure struct {
	Descriptor EventDescriptor
	Err        error
}

// SyncResult summarises one sync pass
type SyncResult struct {
	Created          int
	SkippedDuplicate int
	Failed           []SyncFailure
	Attempts         []SyncAttempt
}

func (r *SyncResult) record(d EventDescriptor, status SyncStatus, err error) {
	r.Attempts = append(r.Attempts, SyncAttempt{Descriptor: d, Status: status, Err: err})
	switch status {
	case StatusCreated:
		r.Created++
	case StatusSkipped:
		r.SkippedDuplicate++
	case StatusFailed:
		r.Failed = append(r.Failed, SyncFailure{Descriptor: d, Err: err})
	}
}

// NewDate returns the calendar date y-m-d at midnight UTC
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf drops the clock part of t, keeping the date as seen in t's location
func DateOf(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}
