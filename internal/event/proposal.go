package event

import (
	"time"

	"planner/internal/invitee"
	"planner/internal/timespan"
)

// Proposal is one candidate timespan for an event and the invitees who
// accepted it. Proposals are only mutated through their owning Event.
type Proposal struct {
	ts       timespan.Timespan
	accepted *invitee.Set
	leading  bool
}

func newProposal(ts timespan.Timespan) *Proposal {
	return &Proposal{ts: ts, accepted: invitee.NewSet()}
}

func (p *Proposal) Timespan() timespan.Timespan { return p.ts }
func (p *Proposal) Start() time.Time            { return p.ts.Start() }
func (p *Proposal) End() time.Time              { return p.ts.End() }
func (p *Proposal) YesCount() int               { return p.accepted.Len() }

// IsLeading reports whether the proposal ties for the most acceptances.
func (p *Proposal) IsLeading() bool { return p.leading }

func (p *Proposal) IsAttending(inv invitee.Invitee) bool { return p.accepted.Has(inv) }

// Attendees returns the accepting invitees in acceptance order.
func (p *Proposal) Attendees() []invitee.Invitee { return p.accepted.All() }

func (p *Proposal) yes(inv invitee.Invitee) { p.accepted.Add(inv) }
func (p *Proposal) no(inv invitee.Invitee)  { p.accepted.Remove(inv) }
