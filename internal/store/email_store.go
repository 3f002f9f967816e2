package store

import (
	"slices"

	"planner/internal/invitee"
	"planner/internal/model"
)

// EmailError reports an address book change that would leave a user
// without a usable default.
type EmailError struct {
	UserID  string
	Address string
	reply   string
}

func (e *EmailError) Error() string { return "unable to remove email address" }
func (e *EmailError) Reply() string { return e.reply }

type userEmails struct {
	uid   string
	dir   invitee.Directory
	known []string
	def   string
}

func (u *userEmails) directoryAddress() string {
	if u.dir == nil {
		return ""
	}
	email, _ := u.dir.EmailForID(u.uid)
	return email
}

func (u *userEmails) defaultAddress() string {
	if u.def != "" {
		return u.def
	}
	return u.directoryAddress()
}

func (u *userEmails) all() []string {
	out := make([]string, 0, len(u.known)+1)
	if d := u.directoryAddress(); d != "" {
		out = append(out, d)
	}
	for _, k := range u.known {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

func (u *userEmails) add(email string, makeDefault bool) {
	if makeDefault || (u.defaultAddress() == "" && len(u.known) == 0) {
		u.def = email
	}
	if !slices.Contains(u.known, email) {
		u.known = append(u.known, email)
	}
}

func (u *userEmails) remove(email string) error {
	directory := u.directoryAddress()
	if directory != "" && directory == email {
		return &EmailError{UserID: u.uid, Address: email,
			reply: "Cannot remove your directory-provided email address."}
	}

	if u.def == email {
		fallback := slices.DeleteFunc(u.all(), func(a string) bool { return a == email })
		switch {
		case len(fallback) == 1:
			u.def = fallback[0]
		case directory != "":
			u.def = directory
		default:
			return &EmailError{UserID: u.uid, Address: email,
				reply: "Cannot remove your default email address without a clear fallback."}
		}
	}

	u.known = slices.DeleteFunc(u.known, func(a string) bool { return a == email })
	return nil
}

// EmailStore keeps the extra addresses each user registered and which one
// is their default. The directory-provided address is always known and can
// never be removed.
type EmailStore struct {
	dir  invitee.Directory
	byID map[string]*userEmails
}

func NewEmailStore(dir invitee.Directory) *EmailStore {
	return &EmailStore{dir: dir, byID: make(map[string]*userEmails)}
}

func (s *EmailStore) user(uid string) *userEmails {
	u, ok := s.byID[uid]
	if !ok {
		u = &userEmails{uid: uid, dir: s.dir}
		s.byID[uid] = u
	}
	return u
}

// Add registers email for uid. The first address a user without a
// directory address adds becomes their default.
func (s *EmailStore) Add(uid, email string, makeDefault bool) {
	s.user(uid).add(email, makeDefault)
}

func (s *EmailStore) Remove(uid, email string) error {
	return s.user(uid).remove(email)
}

// Known returns the directory address first, then manual addresses in the
// order they were added.
func (s *EmailStore) Known(uid string) []string { return s.user(uid).all() }

func (s *EmailStore) Default(uid string) string { return s.user(uid).defaultAddress() }

func (s *EmailStore) DirectoryAddress(uid string) string { return s.user(uid).directoryAddress() }

// Payload converts the address books to their persisted form.
func (s *EmailStore) Payload() map[string]model.UserEmailPayload {
	out := make(map[string]model.UserEmailPayload, len(s.byID))
	for uid, u := range s.byID {
		out[uid] = model.UserEmailPayload{
			ManualAddresses: slices.Clone(u.known),
			Default:         u.def,
		}
	}
	return out
}

// EmailStoreFromPayload restores address books written by Payload.
func EmailStoreFromPayload(dir invitee.Directory, p map[string]model.UserEmailPayload) *EmailStore {
	s := NewEmailStore(dir)
	for uid, up := range p {
		u := s.user(uid)
		u.known = slices.Clone(up.ManualAddresses)
		u.def = up.Default
	}
	return s
}
