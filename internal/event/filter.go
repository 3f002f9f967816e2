package event

import (
	"strings"
	"time"

	"planner/internal/invitee"
)

// Filter selects events in a search. Zero-valued fields are ignored; set
// fields must all match.
type Filter struct {
	// Name matches a case-insensitive substring of the event name.
	Name string
	// Before keeps events whose earliest comparison date is not after it.
	Before time.Time
	// After keeps events whose latest comparison date is not before it.
	After       time.Time
	Finalized   bool
	Unfinalized bool
	// Invited keeps events whose invitee list contains it.
	Invited invitee.Invitee
}

// Matches reports whether e passes every set field of f. Events without
// proposals always pass the date bounds.
func (e *Event) Matches(f Filter) bool {
	if f.Name != "" && !strings.Contains(strings.ToLower(e.name), strings.ToLower(f.Name)) {
		return false
	}
	if !f.Before.IsZero() {
		if d, ok := e.EarliestComparisonDate(); ok && d.After(f.Before) {
			return false
		}
	}
	if !f.After.IsZero() {
		if d, ok := e.LatestComparisonDate(); ok && d.Before(f.After) {
			return false
		}
	}
	if f.Finalized && !e.IsFinalized() {
		return false
	}
	if f.Unfinalized && e.IsFinalized() {
		return false
	}
	if !f.Invited.IsZero() && !e.invitees.Has(f.Invited) {
		return false
	}
	return true
}
