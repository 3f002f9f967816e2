// Package store owns the planner's registries: the EventStore of events keyed
// by case-insensitive id, the per-user EmailStore, and the versioned Store
// envelope that bundles both for persistence.
package store

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"planner/internal/event"
	"planner/internal/model"
)

const (
	idLength   = 8
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxIDAttempts bounds collision retries. With 36^8 ids a collision
	// streak this long means the generator is broken.
	maxIDAttempts = 1000
)

// ErrIDSpaceExhausted is returned when no unused id could be generated.
var ErrIDSpaceExhausted = errors.New("store: unable to generate a unique event id")

// GenerateID returns a random 8 character id over [A-Z0-9].
func GenerateID() string {
	b := make([]byte, idLength)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return string(b)
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithIDGenerator replaces GenerateID, mainly for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *EventStore) { s.generate = gen }
}

// EventStore maps upper-cased ids to events and remembers insertion order.
// It is not safe for concurrent use.
type EventStore struct {
	order    []string
	byID     map[string]*event.Event
	generate func() string
}

func NewEventStore(opts ...Option) *EventStore {
	s := &EventStore{
		byID:     make(map[string]*event.Event),
		generate: GenerateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalize(id string) string { return strings.ToUpper(id) }

// Create registers a new event. An empty id asks for a generated one; an
// explicit id already in use fails with DuplicateEventError.
func (s *EventStore) Create(id, name string) (*event.Event, error) {
	if id == "" {
		generated, err := s.unusedID()
		if err != nil {
			return nil, err
		}
		id = generated
	}

	key := normalize(id)
	if _, exists := s.byID[key]; exists {
		return nil, &event.DuplicateEventError{EventID: id}
	}

	e := event.New(key, name)
	s.put(key, e)
	return e, nil
}

func (s *EventStore) unusedID() (string, error) {
	for range maxIDAttempts {
		id := normalize(s.generate())
		if _, taken := s.byID[id]; !taken {
			return id, nil
		}
	}
	return "", ErrIDSpaceExhausted
}

func (s *EventStore) put(key string, e *event.Event) {
	if _, exists := s.byID[key]; !exists {
		s.order = append(s.order, key)
	}
	s.byID[key] = e
}

// Lookup returns the event registered under id, in any letter case.
func (s *EventStore) Lookup(id string) (*event.Event, error) {
	e, ok := s.byID[normalize(id)]
	if !ok {
		return nil, &event.InvalidEventError{EventID: id}
	}
	return e, nil
}

// Delete removes the event registered under id, in any letter case.
func (s *EventStore) Delete(id string) error {
	key := normalize(id)
	if _, ok := s.byID[key]; !ok {
		return &event.InvalidEventError{EventID: id}
	}
	delete(s.byID, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	return nil
}

func (s *EventStore) Len() int { return len(s.byID) }

// Events returns every event in insertion order.
func (s *EventStore) Events() []*event.Event {
	out := make([]*event.Event, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byID[k])
	}
	return out
}

// Search returns the events matching f, sorted by comparison date.
func (s *EventStore) Search(f event.Filter) *EventSet {
	matched := make([]*event.Event, 0, len(s.order))
	for _, e := range s.Events() {
		if e.Matches(f) {
			matched = append(matched, e)
		}
	}
	slices.SortStableFunc(matched, func(a, b *event.Event) int { return a.Compare(b) })
	return &EventSet{events: matched}
}

// Payload converts the registry to its persisted form.
func (s *EventStore) Payload() model.EventStorePayload {
	out := model.EventStorePayload{ByID: make([]model.EventEntry, 0, len(s.order))}
	for _, k := range s.order {
		out.ByID = append(out.ByID, model.EventEntry{ID: k, Event: s.byID[k].Payload()})
	}
	return out
}

// EventStoreFromPayload restores a registry written by Payload.
func EventStoreFromPayload(p model.EventStorePayload, opts ...Option) (*EventStore, error) {
	s := NewEventStore(opts...)
	for _, entry := range p.ByID {
		e, err := event.FromPayload(entry.Event)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		s.put(normalize(entry.ID), e)
	}
	return s, nil
}
