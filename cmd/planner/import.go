package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"planner/internal/event"
	"planner/internal/ics"
	"planner/internal/store"
)

// importGroup is the VEVENTs that become one planner event.
type importGroup struct {
	id      string
	name    string
	entries []ics.Entry
}

// groupEntries collects entries by planner event id, falling back to the
// UID for calendars the planner did not write. Order of first appearance is
// kept.
func groupEntries(entries []ics.Entry) []*importGroup {
	var groups []*importGroup
	byKey := make(map[string]*importGroup)
	for _, entry := range entries {
		key := entry.UID
		id := ""
		if entry.EventID != "" {
			key = "id:" + strings.ToUpper(entry.EventID)
			id = entry.EventID
		}
		g, ok := byKey[key]
		if !ok {
			g = &importGroup{id: id, name: entry.Summary}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.entries = append(g.entries, entry)
	}
	return groups
}

// apply creates the group's event. Each entry becomes a proposal; ACCEPTED
// attendees vote for it and DECLINED ones are recorded as having responded.
// A lone CONFIRMED entry finalizes the event.
func (g *importGroup) apply(s *session, st *store.Store) (*event.Event, error) {
	name := g.name
	if name == "" {
		name = "Imported event"
	}
	e, err := st.Events.Create(g.id, name)
	if err != nil {
		return nil, err
	}

	confirmed := event.Unspecified
	for _, entry := range g.entries {
		ts := entry.Timespan(s.loc)
		if !ts.Valid() {
			return nil, &event.InvalidTimestampError{Input: entry.UID}
		}
		i, err := e.ProposeDate(ts)
		if err != nil {
			return nil, err
		}
		for _, a := range entry.Attendees {
			ref := a.Email
			if ref == "" {
				ref = a.Name
			}
			if ref == "" {
				continue
			}
			inv := s.dir.FromEmail(ref)
			switch strings.ToUpper(a.Status) {
			case "ACCEPTED":
				if err := e.AcceptProposal(inv, i); err != nil {
					return nil, err
				}
			case "DECLINED":
				e.Responded(inv)
			default:
				e.Invite(inv)
			}
		}
		if strings.EqualFold(entry.Status, "CONFIRMED") {
			confirmed = i
		}
	}

	if confirmed != event.Unspecified && len(g.entries) == 1 {
		if err := e.Finalize(confirmed); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create events from an iCalendar file, one proposed date per VEVENT.",
		ArgsUsage: "FILE",
		Action: action(func(c *cli.Context, s *session) error {
			a, err := args(c, 1, "FILE")
			if err != nil {
				return err
			}
			f, err := os.Open(a[0])
			if err != nil {
				return err
			}
			defer f.Close()

			entries, err := ics.Read(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", a[0], err)
			}
			groups := groupEntries(entries)

			return s.update(func(st *store.Store) (string, error) {
				var out []string
				created := 0
				for _, g := range groups {
					if g.id != "" {
						if existing, err := st.Events.Lookup(g.id); err == nil {
							out = append(out, fmt.Sprintf("Skipped *%s*, the ID is already taken by %q.", existing.ID(), existing.Name()))
							continue
						}
					}
					e, err := g.apply(s, st)
					if err != nil {
						return "", err
					}
					created++
					out = append(out, line(e))
				}
				header := fmt.Sprintf("_Imported %s from %s_", plural(created, "event"), plural(len(entries), "VEVENT"))
				return strings.Join(append([]string{header}, out...), "\n"), nil
			})
		}),
	}
}
