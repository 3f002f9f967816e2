package invitee

import "planner/internal/model"

// Set is an insertion-ordered set of invitees keyed by Invitee.Key.
// Re-adding a member keeps its original position.
type Set struct {
	keys    []string
	members map[string]Invitee
}

func NewSet() *Set {
	return &Set{members: make(map[string]Invitee)}
}

// Add inserts inv and reports whether it was not already present.
func (s *Set) Add(inv Invitee) bool {
	k := inv.Key()
	if _, ok := s.members[k]; ok {
		return false
	}
	s.keys = append(s.keys, k)
	s.members[k] = inv
	return true
}

// Remove deletes inv and reports whether it was present.
func (s *Set) Remove(inv Invitee) bool {
	k := inv.Key()
	if _, ok := s.members[k]; !ok {
		return false
	}
	delete(s.members, k)
	for i, key := range s.keys {
		if key == k {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	return true
}

func (s *Set) Has(inv Invitee) bool {
	_, ok := s.members[inv.Key()]
	return ok
}

func (s *Set) Len() int { return len(s.keys) }

// All returns the members in insertion order. The slice is a copy.
func (s *Set) All() []Invitee {
	out := make([]Invitee, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.members[k])
	}
	return out
}

// Payloads returns the persisted form of every member in order.
func (s *Set) Payloads() []model.InviteePayload {
	out := make([]model.InviteePayload, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, s.members[k].Payload())
	}
	return out
}

// SetFromPayloads rebuilds a set written by Payloads.
func SetFromPayloads(ps []model.InviteePayload) (*Set, error) {
	s := NewSet()
	for _, p := range ps {
		inv, err := FromPayload(p)
		if err != nil {
			return nil, err
		}
		s.Add(inv)
	}
	return s, nil
}
