// Package identity resolves participant ids to display names and email
// addresses from the configured user list.
package identity

import (
	"strings"

	"planner/internal/config"
	"planner/internal/invitee"
)

type user struct {
	name  string
	email string
}

// Directory is a read-only invitee.Directory backed by config users.
type Directory struct {
	byID map[string]user
}

var _ invitee.Directory = (*Directory)(nil)

// FromConfig builds a Directory. Entries without an id are skipped; later
// duplicates win.
func FromConfig(users []config.UserConfig) *Directory {
	d := &Directory{byID: make(map[string]user, len(users))}
	for _, u := range users {
		id := strings.TrimSpace(u.ID)
		if id == "" {
			continue
		}
		d.byID[id] = user{name: strings.TrimSpace(u.Name), email: strings.TrimSpace(u.Email)}
	}
	return d
}

func (d *Directory) NameForID(id string) (string, bool) {
	u, ok := d.byID[id]
	if !ok || u.name == "" {
		return "", false
	}
	return u.name, true
}

func (d *Directory) EmailForID(id string) (string, bool) {
	u, ok := d.byID[id]
	if !ok || u.email == "" {
		return "", false
	}
	return u.email, true
}

// Len reports how many ids are known.
func (d *Directory) Len() int { return len(d.byID) }

// Resolve maps a command-line participant reference to an invitee: a
// leading '@' or a known id yields an identified invitee, anything else is
// freeform.
func (d *Directory) Resolve(ref string) invitee.Invitee {
	ref = strings.TrimSpace(ref)
	if id, ok := strings.CutPrefix(ref, "@"); ok && id != "" {
		return invitee.Identified(id)
	}
	if _, ok := d.byID[ref]; ok {
		return invitee.Identified(ref)
	}
	return invitee.Freeform(ref)
}

// FromEmail maps an address back to an invitee: a configured address or a
// placeholder address yields an identified invitee, anything else is kept
// as a freeform name.
func (d *Directory) FromEmail(email string) invitee.Invitee {
	email = strings.TrimSpace(email)
	for id, u := range d.byID {
		if u.email != "" && strings.EqualFold(u.email, email) {
			return invitee.Identified(id)
		}
	}
	if id, ok := strings.CutSuffix(email, "@"+invitee.PlaceholderEmailDomain); ok && id != "" {
		return invitee.Identified(id)
	}
	return invitee.Freeform(email)
}
