package store

import "planner/internal/event"

// EventSet is the sorted, read-only result of one EventStore.Search.
type EventSet struct {
	events []*event.Event
}

func (es *EventSet) Len() int { return len(es.events) }

func (es *EventSet) At(i int) *event.Event { return es.events[i] }

// Events returns a copy of the sequence.
func (es *EventSet) Events() []*event.Event {
	out := make([]*event.Event, len(es.events))
	copy(out, es.events)
	return out
}

// PresentWith hands every event to p in order and stops at the first error.
func (es *EventSet) PresentWith(p event.Presenter) error {
	for _, e := range es.events {
		if err := e.PresentWith(p); err != nil {
			return err
		}
	}
	return nil
}
