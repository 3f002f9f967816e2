// Package ics exports planner events as an iCalendar feed and reads such
// feeds back.
package ics

import (
	"fmt"
	"strconv"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"planner/internal/event"
	"planner/internal/invitee"
)

const productID = "-//planner//event feed//EN"

// uidSpace namespaces the SHA-1 UIDs of exported proposals.
var uidSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("planner:event-feed"))

// Feed is an event.Presenter that appends one VEVENT per presented date.
// Open events contribute every live proposal as tentative and transparent,
// finalized events contribute their final proposal as confirmed and opaque.
type Feed struct {
	cal *ical.Calendar
	dir invitee.Directory
	now func() time.Time
}

type Option func(*Feed)

// WithClock overrides the DTSTAMP source.
func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

// NewFeed starts an empty calendar named name. dir resolves attendee names
// and addresses and may be nil.
func NewFeed(name string, loc *time.Location, dir invitee.Directory, opts ...Option) *Feed {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)
	if loc != nil {
		cal.SetXWRTimezone(loc.String())
	}

	f := &Feed{cal: cal, dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Feed) PresentProposed(e *event.Event) error {
	for i, p := range e.Proposals() {
		if p == nil {
			continue
		}
		f.add(e, i, p, ical.TransparencyTransparent, ical.ObjectStatusTentative)
	}
	return nil
}

func (f *Feed) PresentFinalized(e *event.Event) error {
	i, _ := e.FinalIndex()
	p, err := e.FinalProposal()
	if err != nil {
		return err
	}
	f.add(e, i, p, ical.TransparencyOpaque, ical.ObjectStatusConfirmed)
	return nil
}

// ProposalUID is the stable UID of proposal index of event id.
func ProposalUID(id string, index int) string {
	return uuid.NewSHA1(uidSpace, []byte(id+"/"+strconv.Itoa(index))).String()
}

func (f *Feed) add(e *event.Event, index int, p *event.Proposal, transp ical.TimeTransparency, status ical.ObjectStatus) {
	ve := f.cal.AddEvent(ProposalUID(e.ID(), index))
	ve.SetDtStampTime(f.now())
	ve.SetSummary(e.Name())
	ve.SetDescription(fmt.Sprintf("ID: %s", e.ID()))
	ve.SetStatus(status)
	ve.SetTimeTransparency(transp)

	ts := p.Timespan()
	if ts.IsFullDay() {
		// DTEND of an all-day event is the exclusive next day.
		end := ts.End()
		ve.SetAllDayStartAt(ts.Start())
		ve.SetAllDayEndAt(time.Date(end.Year(), end.Month(), end.Day()+1, 0, 0, 0, 0, end.Location()))
	} else {
		ve.SetStartAt(ts.Start())
		ve.SetEndAt(ts.End())
	}

	for _, inv := range p.Attendees() {
		f.attendee(ve, inv, ical.ParticipationStatusAccepted)
	}
	for _, inv := range e.Responses() {
		if !p.IsAttending(inv) {
			f.attendee(ve, inv, ical.ParticipationStatusDeclined)
		}
	}
}

func (f *Feed) attendee(ve *ical.VEvent, inv invitee.Invitee, status ical.ParticipationStatus) {
	ve.AddAttendee(inv.Email(f.dir), status, ical.WithCN(inv.Mention(f.dir)))
}

// Len reports how many VEVENTs have been added.
func (f *Feed) Len() int { return len(f.cal.Events()) }

// Serialize renders the calendar as RFC 5545 text.
func (f *Feed) Serialize() string { return f.cal.Serialize() }

// Subject is anything that can drive a presenter.
type Subject interface {
	PresentWith(p event.Presenter) error
}

// Export presents s into a fresh feed and serializes it.
func Export(s Subject, name string, loc *time.Location, dir invitee.Directory, opts ...Option) (string, error) {
	f := NewFeed(name, loc, dir, opts...)
	if err := s.PresentWith(f); err != nil {
		return "", err
	}
	return f.Serialize(), nil
}
