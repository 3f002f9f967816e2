package web

import (
	"time"

	"planner/internal/event"
	"planner/internal/invitee"
)

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events   []eventDTO `json:"events"`
	Total    int        `json:"total"`
	Timezone string     `json:"timezone"`
}

type participantDTO struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

type proposalDTO struct {
	Index     int              `json:"index"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`
	AllDay    bool             `json:"all_day"`
	Yes       int              `json:"yes"`
	Leading   bool             `json:"leading"`
	Attendees []participantDTO `json:"attendees"`
}

type eventDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Finalized bool             `json:"finalized"`
	Final     *int             `json:"final,omitempty"`
	Invitees  []participantDTO `json:"invitees"`
	Responses []participantDTO `json:"responses"`
	Proposals []proposalDTO    `json:"proposals"`
}

func participants(invs []invitee.Invitee, dir invitee.Directory) []participantDTO {
	out := make([]participantDTO, 0, len(invs))
	for _, inv := range invs {
		out = append(out, participantDTO{Key: inv.Key(), Name: inv.Mention(dir)})
	}
	return out
}

func newEventDTO(e *event.Event, dir invitee.Directory) eventDTO {
	dto := eventDTO{
		ID:        e.ID(),
		Name:      e.Name(),
		Finalized: e.IsFinalized(),
		Invitees:  participants(e.Invitees(), dir),
		Responses: participants(e.Responses(), dir),
		Proposals: make([]proposalDTO, 0, len(e.ProposalKeys())),
	}
	if i, ok := e.FinalIndex(); ok {
		dto.Final = &i
	}
	for i, p := range e.Proposals() {
		if p == nil {
			continue
		}
		dto.Proposals = append(dto.Proposals, proposalDTO{
			Index:     i,
			Start:     p.Start(),
			End:       p.End(),
			AllDay:    p.Timespan().IsFullDay(),
			Yes:       p.YesCount(),
			Leading:   p.IsLeading(),
			Attendees: participants(p.Attendees(), dir),
		})
	}
	return dto
}
