package store

import (
	"encoding/json"
	"fmt"

	"planner/internal/invitee"
	"planner/internal/model"
)

// Version is the envelope version written by Store.MarshalJSON.
const Version = "2"

// UnrecognizedStoreVersionError reports an envelope this build cannot read.
type UnrecognizedStoreVersionError struct {
	Version string
}

func (e *UnrecognizedStoreVersionError) Error() string {
	return fmt.Sprintf("unrecognized store version %q", e.Version)
}

func (e *UnrecognizedStoreVersionError) Reply() string {
	return fmt.Sprintf("The saved planner data has version %q, which this planner cannot read.", e.Version)
}

// Store bundles every registry the planner persists.
type Store struct {
	Events *EventStore
	Emails *EmailStore
}

// New returns an empty store. dir resolves directory-provided addresses.
func New(dir invitee.Directory, opts ...Option) *Store {
	return &Store{
		Events: NewEventStore(opts...),
		Emails: NewEmailStore(dir),
	}
}

// Payload returns the current versioned envelope.
func (s *Store) Payload() model.StorePayload {
	return model.StorePayload{
		Version:    Version,
		EventStore: s.Events.Payload(),
		EmailStore: s.Emails.Payload(),
	}
}

func (s *Store) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Payload())
}

// Decode restores a store from a serialized envelope. Envelopes without a
// version hold only the event registry.
func Decode(data []byte, dir invitee.Directory, opts ...Option) (*Store, error) {
	var probe struct {
		Version *string `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("store: decode envelope: %w", err)
	}

	if probe.Version == nil {
		var legacy model.EventStorePayload
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("store: decode v1 envelope: %w", err)
		}
		events, err := EventStoreFromPayload(legacy, opts...)
		if err != nil {
			return nil, err
		}
		return &Store{Events: events, Emails: NewEmailStore(dir)}, nil
	}

	if *probe.Version != Version {
		return nil, &UnrecognizedStoreVersionError{Version: *probe.Version}
	}

	var p model.StorePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("store: decode v%s envelope: %w", Version, err)
	}
	events, err := EventStoreFromPayload(p.EventStore, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{Events: events, Emails: EmailStoreFromPayload(dir, p.EmailStore)}, nil
}
