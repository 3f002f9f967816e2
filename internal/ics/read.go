package ics

import (
	"errors"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "planner/internal/log"
	"planner/internal/timespan"
)

// Attendee is one ATTENDEE line of an exported date.
type Attendee struct {
	Email  string
	Name   string
	Status string
}

// Entry is the normalized form of one VEVENT. EventID is the planner event
// id, empty for calendars the planner did not write.
type Entry struct {
	UID          string
	EventID      string
	Summary      string
	Status       string
	Transparency string

	Start  time.Time
	End    time.Time
	AllDay bool

	Attendees []Attendee
}

// Timespan converts the entry's dates to a span in loc. All-day entries
// carry an exclusive DTEND, so the span ends on the day before it.
func (e Entry) Timespan(loc *time.Location) timespan.Timespan {
	if loc == nil {
		loc = time.UTC
	}
	if !e.AllDay {
		return timespan.New(e.Start.In(loc), e.End.In(loc), false)
	}
	start := time.Date(e.Start.Year(), e.Start.Month(), e.Start.Day(), 0, 0, 0, 0, loc)
	last := start
	if e.End.After(e.Start) {
		last = time.Date(e.End.Year(), e.End.Month(), e.End.Day()-1, 0, 0, 0, 0, loc)
	}
	end := time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, int(999*time.Millisecond), loc)
	return timespan.New(start, end, true)
}

// Read parses an iCalendar payload. VEVENTs without a UID are logged and
// skipped.
func Read(r io.Reader) ([]Entry, error) {
	cal, err := ical.ParseCalendar(r)
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	entries := make([]Entry, 0)
	for _, ve := range cal.Events() {
		entry, err := readVEvent(ve)
		if err != nil {
			appLog.Error("ics vevent skipped", err)
			continue
		}
		entries = append(entries, entry)
	}

	appLog.Debug("ics parse completed", "event_count", len(entries))
	return entries, nil
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func param(ps map[string][]string, key string) string {
	if vs, ok := ps[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func readVEvent(ve *ical.VEvent) (Entry, error) {
	var out Entry

	out.UID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.UID == "" {
		return out, errors.New("missing UID")
	}
	out.Summary = propValue(ve, ical.ComponentPropertySummary)
	if id, ok := strings.CutPrefix(propValue(ve, ical.ComponentPropertyDescription), "ID: "); ok {
		out.EventID = strings.TrimSpace(id)
	}
	out.Status = propValue(ve, ical.ComponentPropertyStatus)
	out.Transparency = propValue(ve, ical.ComponentPropertyTransp)

	// VALUE=DATE or no 'T' in the value -> all-day
	if dtStart := ve.GetProperty(ical.ComponentPropertyDtStart); dtStart != nil {
		out.AllDay = strings.EqualFold(param(dtStart.ICalParameters, "VALUE"), "DATE") ||
			!strings.Contains(dtStart.Value, "T")
	}

	var err error
	if out.AllDay {
		if out.Start, err = ve.GetAllDayStartAt(); err != nil {
			return out, err
		}
		if out.End, err = ve.GetAllDayEndAt(); err != nil {
			return out, err
		}
	} else {
		if out.Start, err = ve.GetStartAt(); err != nil {
			return out, err
		}
		if out.End, err = ve.GetEndAt(); err != nil {
			return out, err
		}
	}

	for _, prop := range ve.GetProperties(ical.ComponentPropertyAttendee) {
		email := prop.Value
		if len(email) >= len("mailto:") && strings.EqualFold(email[:len("mailto:")], "mailto:") {
			email = email[len("mailto:"):]
		}
		out.Attendees = append(out.Attendees, Attendee{
			Email:  email,
			Name:   param(prop.ICalParameters, "CN"),
			Status: param(prop.ICalParameters, "PARTSTAT"),
		})
	}

	return out, nil
}
