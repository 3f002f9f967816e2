// Package event implements the scheduling state machine: an event collects
// proposed dates, invitees vote on them, and one proposal is eventually
// finalized as the binding date.
//
// An Event is not safe for concurrent use. Hosts that share events between
// goroutines must serialize access themselves.
package event

import (
	"time"

	"planner/internal/invitee"
	"planner/internal/timespan"
)

// Unspecified asks Finalize to pick the only live proposal.
const Unspecified = -1

// leaderThreshold is the minimum acceptance count for a proposal to lead.
const leaderThreshold = 2

// Event is either proposed (no final index) or finalized.
type Event struct {
	id   string
	name string

	// proposals is an arena of slots; a nil slot is a removed proposal.
	// Indices are never reused.
	proposals []*Proposal

	invitees  *invitee.Set
	responses *invitee.Set

	finalized int

	earliest *Proposal
	latest   *Proposal
}

// New returns an empty event in the proposed state.
func New(id, name string) *Event {
	return &Event{
		id:        id,
		name:      name,
		invitees:  invitee.NewSet(),
		responses: invitee.NewSet(),
		finalized: Unspecified,
	}
}

func (e *Event) ID() string   { return e.id }
func (e *Event) Name() string { return e.name }

func (e *Event) SetName(name string) { e.name = name }

// ProposeDate appends ts as a new proposal and returns its index.
func (e *Event) ProposeDate(ts timespan.Timespan) (int, error) {
	if e.IsFinalized() {
		return 0, &FinalizedEventError{EventID: e.id, EventName: e.name}
	}
	if !ts.Valid() {
		return 0, &InvalidTimestampError{Input: ts.Input()}
	}

	p := newProposal(ts)
	e.proposals = append(e.proposals, p)
	e.track(p)
	return len(e.proposals) - 1, nil
}

// Unpropose removes the proposal at index. The slot stays empty; later
// proposals keep appending after it.
func (e *Event) Unpropose(index int) error {
	p, err := e.Proposal(index)
	if err != nil {
		return err
	}

	e.proposals[index] = nil
	if e.finalized == index {
		e.finalized = Unspecified
	}
	if p == e.earliest || p == e.latest {
		e.rescan()
	}
	e.recomputeLeaders()
	return nil
}

// Proposal returns the live proposal at index.
func (e *Event) Proposal(index int) (*Proposal, error) {
	if index < 0 || index >= len(e.proposals) || e.proposals[index] == nil {
		return nil, &InvalidProposalError{EventID: e.id, EventName: e.name, Index: index}
	}
	return e.proposals[index], nil
}

// ProposalKeys returns the indices of live proposals in ascending order.
func (e *Event) ProposalKeys() []int {
	keys := make([]int, 0, len(e.proposals))
	for i, p := range e.proposals {
		if p != nil {
			keys = append(keys, i)
		}
	}
	return keys
}

// Proposals returns the arena, including nil entries for removed slots, so
// that position i is proposal index i.
func (e *Event) Proposals() []*Proposal {
	out := make([]*Proposal, len(e.proposals))
	copy(out, e.proposals)
	return out
}

func (e *Event) liveCount() int {
	n := 0
	for _, p := range e.proposals {
		if p != nil {
			n++
		}
	}
	return n
}

func (e *Event) Invite(inv invitee.Invitee) { e.invitees.Add(inv) }

// Uninvite drops inv from the invitee list and revokes every acceptance
// it recorded.
func (e *Event) Uninvite(inv invitee.Invitee) {
	e.invitees.Remove(inv)
	e.responses.Remove(inv)
	for _, p := range e.proposals {
		if p != nil {
			p.no(inv)
		}
	}
	e.recomputeLeaders()
}

func (e *Event) Invitees() []invitee.Invitee  { return e.invitees.All() }
func (e *Event) Responses() []invitee.Invitee { return e.responses.All() }

func (e *Event) IsInvited(inv invitee.Invitee) bool    { return e.invitees.Has(inv) }
func (e *Event) HasResponded(inv invitee.Invitee) bool { return e.responses.Has(inv) }

// Responded records that inv answered without naming a proposal.
func (e *Event) Responded(inv invitee.Invitee) {
	e.invitees.Add(inv)
	e.responses.Add(inv)
}

func (e *Event) AcceptProposal(inv invitee.Invitee, index int) error {
	return e.vote(inv, index, true)
}

func (e *Event) RejectProposal(inv invitee.Invitee, index int) error {
	return e.vote(inv, index, false)
}

func (e *Event) vote(inv invitee.Invitee, index int, yes bool) error {
	p, err := e.Proposal(index)
	if err != nil {
		return err
	}
	e.Responded(inv)
	if yes {
		p.yes(inv)
	} else {
		p.no(inv)
	}
	e.recomputeLeaders()
	return nil
}

// Confirm records that inv will attend the finalized date.
func (e *Event) Confirm(inv invitee.Invitee) error {
	return e.respondFinal(inv, true)
}

// Decline records that inv will not attend the finalized date.
func (e *Event) Decline(inv invitee.Invitee) error {
	return e.respondFinal(inv, false)
}

func (e *Event) respondFinal(inv invitee.Invitee, yes bool) error {
	if !e.IsFinalized() {
		return &UnfinalizedEventError{EventID: e.id, EventName: e.name}
	}
	return e.vote(inv, e.finalized, yes)
}

// Finalize chooses the proposal at index as the event's date. With
// Unspecified, the event must have exactly one live proposal.
func (e *Event) Finalize(index int) error {
	if e.IsFinalized() {
		return &FinalizedEventError{EventID: e.id, EventName: e.name}
	}
	if index == Unspecified {
		keys := e.ProposalKeys()
		switch len(keys) {
		case 0:
			return &NoProposalsError{EventID: e.id, EventName: e.name}
		case 1:
			index = keys[0]
		default:
			return &MultipleProposalsError{EventID: e.id, EventName: e.name, ProposalCount: len(keys)}
		}
	}
	if _, err := e.Proposal(index); err != nil {
		return err
	}
	e.finalized = index
	return nil
}

// Unfinalize returns the event to the proposed state. It is idempotent.
func (e *Event) Unfinalize() { e.finalized = Unspecified }

func (e *Event) IsFinalized() bool { return e.finalized != Unspecified }

// FinalIndex returns the finalized proposal index, if any.
func (e *Event) FinalIndex() (int, bool) {
	return e.finalized, e.IsFinalized()
}

func (e *Event) FinalProposal() (*Proposal, error) {
	if !e.IsFinalized() {
		return nil, &UnfinalizedEventError{EventID: e.id, EventName: e.name}
	}
	return e.proposals[e.finalized], nil
}

// track folds a newly added proposal into the extremum caches.
func (e *Event) track(p *Proposal) {
	if e.earliest == nil || p.Start().Before(e.earliest.Start()) {
		e.earliest = p
	}
	if e.latest == nil || p.Start().After(e.latest.Start()) {
		e.latest = p
	}
}

func (e *Event) rescan() {
	e.earliest, e.latest = nil, nil
	for _, p := range e.proposals {
		if p != nil {
			e.track(p)
		}
	}
}

// recomputeLeaders marks every live proposal whose acceptance count equals
// the maximum. A lone acceptance never leads.
func (e *Event) recomputeLeaders() {
	top := leaderThreshold
	for _, p := range e.proposals {
		if p != nil && p.YesCount() > top {
			top = p.YesCount()
		}
	}
	for _, p := range e.proposals {
		if p != nil {
			p.leading = p.YesCount() == top
		}
	}
}

// EarliestComparisonDate is the final proposal's start for finalized
// events, or the earliest live proposal start otherwise.
func (e *Event) EarliestComparisonDate() (time.Time, bool) {
	if e.IsFinalized() {
		return e.proposals[e.finalized].Start(), true
	}
	if e.earliest == nil {
		return time.Time{}, false
	}
	return e.earliest.Start(), true
}

// LatestComparisonDate is the final proposal's start for finalized events,
// or the latest live proposal start otherwise.
func (e *Event) LatestComparisonDate() (time.Time, bool) {
	if e.IsFinalized() {
		return e.proposals[e.finalized].Start(), true
	}
	if e.latest == nil {
		return time.Time{}, false
	}
	return e.latest.Start(), true
}

// Compare orders events by earliest comparison date. Events without a date
// sort first.
func (e *Event) Compare(other *Event) int {
	a, aok := e.EarliestComparisonDate()
	b, bok := other.EarliestComparisonDate()
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	return a.Compare(b)
}

// Presenter renders events. The hook matching the event's state is called
// by PresentWith.
type Presenter interface {
	PresentProposed(e *Event) error
	PresentFinalized(e *Event) error
}

func (e *Event) PresentWith(p Presenter) error {
	if e.IsFinalized() {
		return p.PresentFinalized(e)
	}
	return p.PresentProposed(e)
}
