// Package invitee models event participants. An invitee is either bound to a
// durable chat user id or is a free-form display name.
package invitee

import (
	"encoding/json"
	"fmt"

	"planner/internal/model"
)

// Kind tags the two invitee variants.
type Kind int

const (
	KindIdentified Kind = iota + 1
	KindFreeform
)

func (k Kind) String() string {
	switch k {
	case KindIdentified:
		return "identified"
	case KindFreeform:
		return "freeform"
	default:
		return "unknown"
	}
}

// PlaceholderEmailDomain is used to build an address for identified
// invitees the directory cannot resolve.
const PlaceholderEmailDomain = "slack-id.com"

// Directory resolves durable user ids to a display name and email address.
// A missing user is reported with ok == false, never an error.
type Directory interface {
	NameForID(id string) (name string, ok bool)
	EmailForID(id string) (email string, ok bool)
}

// Invitee is an immutable participant identity. The zero value is not a
// valid invitee; use Identified or Freeform.
type Invitee struct {
	kind  Kind
	value string
}

// Identified returns an invitee bound to a durable user id.
func Identified(id string) Invitee {
	return Invitee{kind: KindIdentified, value: id}
}

// Freeform returns an invitee known only by a literal name.
func Freeform(name string) Invitee {
	return Invitee{kind: KindFreeform, value: name}
}

func (i Invitee) Kind() Kind     { return i.kind }
func (i Invitee) IsZero() bool   { return i.kind == 0 }
func (i Invitee) Show() string   { return i.value }
func (i Invitee) String() string { return i.Key() }

// Key is the identity used for set and map membership.
func (i Invitee) Key() string {
	switch i.kind {
	case KindIdentified:
		return "id:" + i.value
	case KindFreeform:
		return "name:" + i.value
	default:
		return ""
	}
}

// Notify renders a loud mention that pings the participant.
func (i Invitee) Notify(_ Directory) string {
	if i.kind == KindIdentified {
		return "<@" + i.value + ">"
	}
	return i.value
}

// Mention renders a quiet, human readable name.
func (i Invitee) Mention(dir Directory) string {
	if i.kind != KindIdentified {
		return i.value
	}
	if dir != nil {
		if name, ok := dir.NameForID(i.value); ok && name != "" {
			return name
		}
	}
	return "`!" + i.value + "`"
}

// Email renders the participant's address, falling back to a placeholder
// derived from the id.
func (i Invitee) Email(dir Directory) string {
	if i.kind != KindIdentified {
		return i.value
	}
	if dir != nil {
		if email, ok := dir.EmailForID(i.value); ok && email != "" {
			return email
		}
	}
	return i.value + "@" + PlaceholderEmailDomain
}

// Payload converts the invitee to its persisted form.
func (i Invitee) Payload() model.InviteePayload {
	return model.InviteePayload{Kind: i.kind.String(), Value: i.value}
}

// FromPayload restores an invitee. The legacy kinds "user" and "free" are
// accepted.
func FromPayload(p model.InviteePayload) (Invitee, error) {
	switch p.Kind {
	case "identified", "user":
		return Identified(p.Value), nil
	case "freeform", "free":
		return Freeform(p.Value), nil
	default:
		return Invitee{}, fmt.Errorf("invitee: invalid kind %q", p.Kind)
	}
}

func (i Invitee) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Payload())
}

func (i *Invitee) UnmarshalJSON(data []byte) error {
	var p model.InviteePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	inv, err := FromPayload(p)
	if err != nil {
		return err
	}
	*i = inv
	return nil
}
