package app

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// Export formats and ICS constants
const (
	FormatICS  = "ics"
	FormatCSV  = "csv"
	FormatJSON = "json"

	ICSProductID = "-//klabast//bin-reminder//EN"
	ICSUIDDomain = "bin-reminder"
)

// ExportFormat picks the format from the flag, falling back to the file
// extension
func ExportFormat(path, format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch f {
	case FormatICS, FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q (want ics, csv or json)", ErrConfiguration, f)
}

// ExportFile writes descriptors to path in the given format
func ExportFile(path, format string, descriptors []EventDescriptor, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("Error closing export file: %v", err)
		}
	}()

	switch format {
	case FormatICS:
		err = WriteICS(f, descriptors, loc, time.Now())
	case FormatCSV:
		err = WriteCSV(f, descriptors)
	case FormatJSON:
		err = WriteJSON(f, descriptors)
	default:
		err = fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return fmt.Errorf("exporting %s: %w", path, err)
	}
	log.Printf("✅ Exported %d events to %s", len(descriptors), path)
	return nil
}

// WriteICS renders descriptors as an iCalendar file of all-day events with
// a VALARM per reminder lead time. There must be at least one descriptor.
func WriteICS(w io.Writer, descriptors []EventDescriptor, loc *time.Location, now time.Time) error {
	if len(descriptors) == 0 {
		return fmt.Errorf("no events to write")
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ICSProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText("X-WR-CALNAME", "Bin collection reminders")
	if loc != nil {
		cal.Props.SetText("X-WR-TIMEZONE", loc.String())
	}

	for _, d := range descriptors {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, d.ID+"@"+ICSUIDDomain)
		event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
		event.Props.SetDate(ical.PropDateTimeStart, d.Date)
		event.Props.SetDate(ical.PropDateTimeEnd, d.Date.AddDate(0, 0, 1))
		event.Props.SetText(ical.PropSummary, d.Title)
		event.Props.SetText(ical.PropDescription, d.Description)
		event.Props.SetText(ical.PropTransparency, "TRANSPARENT")

		// EMAIL alarms need an ATTENDEE we do not know, so every lead
		// time becomes a single DISPLAY alarm
		leads := make(map[int]bool)
		for _, r := range d.Reminders {
			if !leads[r.MinutesBefore] {
				leads[r.MinutesBefore] = true
				event.Children = append(event.Children, alarm(d, r.MinutesBefore))
			}
		}
		cal.Children = append(cal.Children, event.Component)
	}

	return ical.NewEncoder(w).Encode(cal)
}

func alarm(d EventDescriptor, minutesBefore int) *ical.Component {
	c := ical.NewComponent(ical.CompAlarm)
	c.Props.SetText(ical.PropAction, "DISPLAY")
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = fmt.Sprintf("-PT%dM", minutesBefore)
	c.Props.Set(trigger)
	c.Props.SetText(ical.PropDescription, "Reminder: "+d.Title)
	return c
}

// WriteCSV writes one line per descriptor
func WriteCSV(w io.Writer, descriptors []EventDescriptor) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"event_date", "collection_date", "bin_type", "title", "reminders"}); err != nil {
		return err
	}
	for _, d := range descriptors {
		reminders := make([]string, 0, len(d.Reminders))
		for _, r := range d.Reminders {
			reminders = append(reminders, string(r.Method)+":"+strconv.Itoa(r.MinutesBefore))
		}
		record := []string{
			d.Date.Format(DateLayout),
			d.Entry.CollectionDate.Format(DateLayout),
			d.Entry.BinType.String(),
			d.Title,
			strings.Join(reminders, " "),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes {"events": [...]}
func WriteJSON(w io.Writer, descriptors []EventDescriptor) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"events": descriptors,
	})
}
