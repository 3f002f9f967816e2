// Package present renders events and event sets as chat-ready text.
package present

import (
	"fmt"
	"strings"

	"planner/internal/event"
)

// Subject is anything that can drive a presenter: a single event or a
// search result.
type Subject interface {
	PresentWith(p event.Presenter) error
}

// Line renders one line per event. Open events show the event name in
// italics followed by every live proposal; finalized events show the final
// date only.
type Line struct {
	lines []string
}

func (l *Line) PresentProposed(e *event.Event) error {
	var b strings.Builder
	fmt.Fprintf(&b, "`%s` _%s_", e.ID(), e.Name())

	starts := make([]string, 0, len(e.ProposalKeys()))
	for _, p := range e.Proposals() {
		if p == nil {
			continue
		}
		starts = append(starts, p.Timespan().RenderStart())
	}
	if len(starts) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(starts, ", "))
	}

	l.lines = append(l.lines, b.String())
	return nil
}

func (l *Line) PresentFinalized(e *event.Event) error {
	final, err := e.FinalProposal()
	if err != nil {
		return err
	}
	l.lines = append(l.lines, fmt.Sprintf("`%s` %s %s", e.ID(), e.Name(), final.Timespan().RenderStart()))
	return nil
}

func (l *Line) Lines() []string { return append([]string(nil), l.lines...) }

func (l *Line) String() string { return strings.Join(l.lines, "\n") }

// Lines presents s and returns the newline-joined result.
func Lines(s Subject) (string, error) {
	var l Line
	if err := s.PresentWith(&l); err != nil {
		return "", err
	}
	return l.String(), nil
}
