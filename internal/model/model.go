// Package model holds the persisted JSON shape of the planner state.
// Every serializable domain type converts to and from exactly one of these
// payloads, so the on-disk schema lives in one place.
package model

import (
	"encoding/json"
	"fmt"
)

// TimespanPayload is the persisted form of a parsed timespan. Instants are
// epoch milliseconds; Timezone is an IANA zone name.
type TimespanPayload struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Timezone string `json:"timezone"`
	Full     bool   `json:"full"`
}

// InviteePayload is the persisted form of an invitee.
// Kind is "identified" or "freeform" ("user" and "free" are read as aliases).
type InviteePayload struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// ProposalPayload is one candidate date and the invitees who accepted it.
type ProposalPayload struct {
	Timespan TimespanPayload  `json:"timespan"`
	Accepted []InviteePayload `json:"accepted"`
}

// EventPayload is the persisted form of a single event. Removed proposal
// slots are kept as nil entries so indices stay stable.
type EventPayload struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Invitees  []InviteePayload   `json:"invitees"`
	Responses []InviteePayload   `json:"responses"`
	Finalized *int               `json:"finalized"`
	Proposals []*ProposalPayload `json:"proposals"`
}

// UserEmailPayload is the persisted per-user email book.
type UserEmailPayload struct {
	ManualAddresses []string `json:"manualAddresses"`
	Default         string   `json:"default,omitempty"`
}

// EventEntry pairs a store key with its event. It encodes as the two element
// array [id, event].
type EventEntry struct {
	ID    string
	Event EventPayload
}

func (e EventEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ID, e.Event})
}

func (e *EventEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("event entry: expected [id, event], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.ID); err != nil {
		return fmt.Errorf("event entry id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Event); err != nil {
		return fmt.Errorf("event entry %s: %w", e.ID, err)
	}
	return nil
}

// EventStorePayload is the persisted event registry, in insertion order.
type EventStorePayload struct {
	ByID []EventEntry `json:"byID"`
}

// StorePayload is the versioned envelope written to durable storage.
// Version "2" carries both books; an envelope without a version is the
// bare version 1 event registry.
type StorePayload struct {
	Version    string                      `json:"version"`
	EventStore EventStorePayload           `json:"eventStore"`
	EmailStore map[string]UserEmailPayload `json:"emailStore"`
}
