package event

import (
	"encoding/json"
	"fmt"

	"planner/internal/invitee"
	"planner/internal/model"
	"planner/internal/timespan"
)

// Payload converts the event to its persisted form.
func (e *Event) Payload() model.EventPayload {
	out := model.EventPayload{
		ID:        e.id,
		Name:      e.name,
		Invitees:  e.invitees.Payloads(),
		Responses: e.responses.Payloads(),
		Proposals: make([]*model.ProposalPayload, len(e.proposals)),
	}
	if e.IsFinalized() {
		idx := e.finalized
		out.Finalized = &idx
	}
	for i, p := range e.proposals {
		if p == nil {
			continue
		}
		out.Proposals[i] = &model.ProposalPayload{
			Timespan: p.ts.Payload(),
			Accepted: p.accepted.Payloads(),
		}
	}
	return out
}

// FromPayload restores an event written by Payload. Extremum caches and
// leader flags are rebuilt from the restored proposals.
func FromPayload(p model.EventPayload) (*Event, error) {
	e := New(p.ID, p.Name)

	var err error
	if e.invitees, err = invitee.SetFromPayloads(p.Invitees); err != nil {
		return nil, fmt.Errorf("event %s: invitees: %w", p.ID, err)
	}
	if e.responses, err = invitee.SetFromPayloads(p.Responses); err != nil {
		return nil, fmt.Errorf("event %s: responses: %w", p.ID, err)
	}

	e.proposals = make([]*Proposal, len(p.Proposals))
	for i, pp := range p.Proposals {
		if pp == nil {
			continue
		}
		ts, err := timespan.FromPayload(pp.Timespan)
		if err != nil {
			return nil, fmt.Errorf("event %s: proposal %d: %w", p.ID, i, err)
		}
		prop := newProposal(ts)
		if prop.accepted, err = invitee.SetFromPayloads(pp.Accepted); err != nil {
			return nil, fmt.Errorf("event %s: proposal %d: %w", p.ID, i, err)
		}
		e.proposals[i] = prop
	}

	if p.Finalized != nil {
		if _, err := e.Proposal(*p.Finalized); err != nil {
			return nil, fmt.Errorf("event %s: finalized: %w", p.ID, err)
		}
		e.finalized = *p.Finalized
	}

	e.rescan()
	e.recomputeLeaders()
	return e, nil
}

func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload())
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var p model.EventPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	restored, err := FromPayload(p)
	if err != nil {
		return err
	}
	*e = *restored
	return nil
}
