package event

import (
	"errors"
	"fmt"
)

// Every domain error has a short Error() message for logs and a Reply()
// meant to be shown to the participant who issued the command.

// InvalidProposalError reports a proposal index that is removed or out of range.
type InvalidProposalError struct {
	EventID   string
	EventName string
	Index     int
}

func (e *InvalidProposalError) Error() string { return "invalid proposed date" }

func (e *InvalidProposalError) Reply() string {
	return fmt.Sprintf("Event %q does not have a proposed date %q.", e.EventName, fmt.Sprint(e.Index))
}

// NoProposalsError reports an implicit finalize on an event with no proposals.
type NoProposalsError struct {
	EventID   string
	EventName string
}

func (e *NoProposalsError) Error() string { return "no proposed dates" }

func (e *NoProposalsError) Reply() string {
	return fmt.Sprintf("Event %q has no proposed dates.", e.EventName)
}

// MultipleProposalsError reports an implicit finalize that cannot pick a
// single proposal.
type MultipleProposalsError struct {
	EventID       string
	EventName     string
	ProposalCount int
}

func (e *MultipleProposalsError) Error() string { return "more than one proposed date" }

func (e *MultipleProposalsError) Reply() string {
	return fmt.Sprintf("Event %q has %d proposed dates, so you must specify one to finalize the event.",
		e.EventName, e.ProposalCount)
}

// UnfinalizedEventError reports a read of the final proposal before one is chosen.
type UnfinalizedEventError struct {
	EventID   string
	EventName string
}

func (e *UnfinalizedEventError) Error() string { return "event not finalized" }

func (e *UnfinalizedEventError) Reply() string {
	return fmt.Sprintf("Event %q has not had a final date chosen yet.", e.EventName)
}

// FinalizedEventError reports a proposal or finalize on a finalized event.
type FinalizedEventError struct {
	EventID   string
	EventName string
}

func (e *FinalizedEventError) Error() string { return "event already finalized" }

func (e *FinalizedEventError) Reply() string {
	return fmt.Sprintf("Event %q has already had a final date chosen.", e.EventName)
}

// InvalidEventError reports a lookup of an unknown event id. EventID is the
// id as the caller supplied it, before normalization.
type InvalidEventError struct {
	EventID string
}

func (e *InvalidEventError) Error() string { return "invalid event ID" }

func (e *InvalidEventError) Reply() string {
	return fmt.Sprintf("There is no event with the ID %s.", e.EventID)
}

// DuplicateEventError reports an explicit event id that is already taken.
type DuplicateEventError struct {
	EventID string
}

func (e *DuplicateEventError) Error() string { return "duplicate event ID" }

func (e *DuplicateEventError) Reply() string {
	return fmt.Sprintf("There is already an event with the ID %s.", e.EventID)
}

// InvalidTimestampError reports a date expression that could not be parsed.
type InvalidTimestampError struct {
	Input string
}

func (e *InvalidTimestampError) Error() string { return "unable to parse timestamp" }

func (e *InvalidTimestampError) Reply() string {
	return fmt.Sprintf("Unable to parse a timestamp from %q. "+
		"Please use <ISO 8601|https://en.wikipedia.org/wiki/ISO_8601> format.", e.Input)
}

// Replier is implemented by errors that carry user-facing text.
type Replier interface {
	error
	Reply() string
}

// Reply returns the user-facing text of err, or "" if err carries none.
func Reply(err error) string {
	var r Replier
	if errors.As(err, &r) {
		return r.Reply()
	}
	return ""
}
