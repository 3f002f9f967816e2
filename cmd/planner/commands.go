package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"planner/internal/event"
	"planner/internal/ics"
	"planner/internal/invitee"
	"planner/internal/present"
	"planner/internal/store"
	"planner/internal/timespan"
)

var errNoActor = errors.New("this command needs a participant: pass --as or --for")

// args returns exactly n positional arguments.
func args(c *cli.Context, n int, usage string) ([]string, error) {
	if c.NArg() != n {
		return nil, fmt.Errorf("usage: %s %s", c.Command.Name, usage)
	}
	return c.Args().Slice(), nil
}

func parseIndex(raw string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("proposal index %q is not a number", raw)
	}
	return i, nil
}

func (s *session) parseSpan(raw string) (timespan.Timespan, error) {
	ts := timespan.Parse(raw, s.loc)
	if !ts.Valid() {
		return ts, &event.InvalidTimestampError{Input: raw}
	}
	return ts, nil
}

// participant is --for when given, else the session actor.
func (s *session) participant(c *cli.Context) (invitee.Invitee, error) {
	if who := c.String("for"); who != "" {
		return s.dir.Resolve(who), nil
	}
	if s.actor.IsZero() {
		return invitee.Invitee{}, errNoActor
	}
	return s.actor, nil
}

func line(e *event.Event) string {
	out, err := present.Lines(e)
	if err != nil {
		return fmt.Sprintf("`%s` %s", e.ID(), e.Name())
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

var forFlag = &cli.StringFlag{Name: "for", Usage: "Act on behalf of another participant"}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a new event.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true, Usage: "Human-friendly, non-unique title for this event"},
			&cli.StringFlag{Name: "id", Usage: "Unique string used to identify this event in further commands"},
			&cli.StringSliceFlag{Name: "propose", Usage: "Propose a possible date; may be repeated"},
			&cli.StringSliceFlag{Name: "invite", Usage: "Invite a participant; may be repeated"},
			&cli.StringFlag{Name: "at", Usage: "Already-final date; cannot be combined with --propose"},
		},
		Action: action(func(c *cli.Context, s *session) error {
			at := c.String("at")
			proposals := c.StringSlice("propose")
			if at != "" && len(proposals) > 0 {
				return errors.New("--at cannot be combined with --propose")
			}
			if at != "" {
				proposals = []string{at}
			}

			// Parse everything first so a bad date creates nothing.
			spans := make([]timespan.Timespan, 0, len(proposals))
			for _, raw := range proposals {
				ts, err := s.parseSpan(raw)
				if err != nil {
					return err
				}
				spans = append(spans, ts)
			}

			return s.update(func(st *store.Store) (string, error) {
				e, err := st.Events.Create(c.String("id"), c.String("name"))
				if err != nil {
					return "", err
				}
				if !s.actor.IsZero() {
					e.Invite(s.actor)
					e.Responded(s.actor)
				}
				for _, ts := range spans {
					i, err := e.ProposeDate(ts)
					if err != nil {
						return "", err
					}
					if !s.actor.IsZero() {
						if err := e.AcceptProposal(s.actor, i); err != nil {
							return "", err
						}
					}
				}
				if at != "" {
					if err := e.Finalize(0); err != nil {
						return "", err
					}
				}
				for _, who := range c.StringSlice("invite") {
					e.Invite(s.dir.Resolve(who))
				}
				return fmt.Sprintf("The event %q has been created with id *%s*.\n%s", e.Name(), e.ID(), line(e)), nil
			})
		}),
	}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one event.",
		ArgsUsage: "ID",
		Action: action(func(c *cli.Context, s *session) error {
			a, err := args(c, 1, "ID")
			if err != nil {
				return err
			}
			return s.read(func(st *store.Store) (string, error) {
				e, err := st.Events.Lookup(a[0])
				if err != nil {
					return "", err
				}
				return describe(e, s.dir), nil
			})
		}),
	}
}

// describe renders one event with every live proposal and its attendees.
func describe(e *event.Event, dir invitee.Directory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`%s` %s", e.ID(), e.Name())
	if e.IsFinalized() {
		b.WriteString(" (final)")
	}
	for _, i := range e.ProposalKeys() {
		p, _ := e.Proposal(i)
		marker := " "
		switch final, _ := e.FinalIndex(); {
		case e.IsFinalized() && final == i:
			marker = "="
		case p.IsLeading():
			marker = "*"
		}
		names := make([]string, 0, p.YesCount())
		for _, inv := range p.Attendees() {
			names = append(names, inv.Mention(dir))
		}
		fmt.Fprintf(&b, "\n%s[%d] %s (%d yes", marker, i, p.Timespan().RenderRange(), p.YesCount())
		if len(names) > 0 {
			fmt.Fprintf(&b, ": %s", strings.Join(names, ", "))
		}
		b.WriteString(")")
	}
	if invs := e.Invitees(); len(invs) > 0 {
		names := make([]string, 0, len(invs))
		for _, inv := range invs {
			names = append(names, inv.Mention(dir))
		}
		fmt.Fprintf(&b, "\ninvited: %s", strings.Join(names, ", "))
	}
	return b.String()
}

// eventCommand builds a mutating command taking ID plus extra positional
// arguments.
func eventCommand(name, usage, argsUsage string, extra int, flags []cli.Flag,
	fn func(c *cli.Context, s *session, e *event.Event, rest []string) (string, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: argsUsage,
		Flags:     flags,
		Action: action(func(c *cli.Context, s *session) error {
			a, err := args(c, 1+extra, argsUsage)
			if err != nil {
				return err
			}
			return s.update(func(st *store.Store) (string, error) {
				e, err := st.Events.Lookup(a[0])
				if err != nil {
					return "", err
				}
				return fn(c, s, e, a[1:])
			})
		}),
	}
}

func proposeCommand() *cli.Command {
	return eventCommand("propose", "Propose a possible date.", "ID WHEN", 1, nil,
		func(_ *cli.Context, s *session, e *event.Event, rest []string) (string, error) {
			ts, err := s.parseSpan(rest[0])
			if err != nil {
				return "", err
			}
			i, err := e.ProposeDate(ts)
			if err != nil {
				return "", err
			}
			if !s.actor.IsZero() {
				if err := e.AcceptProposal(s.actor, i); err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("Proposed date [%d].\n%s", i, line(e)), nil
		})
}

func unproposeCommand() *cli.Command {
	return eventCommand("unpropose", "Remove a proposed date by index.", "ID INDEX", 1, nil,
		func(_ *cli.Context, _ *session, e *event.Event, rest []string) (string, error) {
			i, err := parseIndex(rest[0])
			if err != nil {
				return "", err
			}
			if err := e.Unpropose(i); err != nil {
				return "", err
			}
			return line(e), nil
		})
}

func inviteCommand() *cli.Command {
	return eventCommand("invite", "Invite a participant.", "ID WHO", 1, nil,
		func(_ *cli.Context, s *session, e *event.Event, rest []string) (string, error) {
			inv := s.dir.Resolve(rest[0])
			e.Invite(inv)
			return fmt.Sprintf("%s has been invited to %q.", inv.Mention(s.dir), e.Name()), nil
		})
}

func uninviteCommand() *cli.Command {
	return eventCommand("uninvite", "Remove a participant and their votes.", "ID WHO", 1, nil,
		func(_ *cli.Context, s *session, e *event.Event, rest []string) (string, error) {
			inv := s.dir.Resolve(rest[0])
			e.Uninvite(inv)
			return fmt.Sprintf("%s is no longer invited to %q.", inv.Mention(s.dir), e.Name()), nil
		})
}

func dateOf(e *event.Event, i int) string {
	p, err := e.Proposal(i)
	if err != nil {
		return strconv.Itoa(i)
	}
	return "*" + p.Start().Format("2 January 2006") + "*"
}

func voteCommand(name, usage string, yes bool) *cli.Command {
	return eventCommand(name, usage, "ID INDEX", 1, []cli.Flag{forFlag},
		func(c *cli.Context, s *session, e *event.Event, rest []string) (string, error) {
			who, err := s.participant(c)
			if err != nil {
				return "", err
			}
			i, err := parseIndex(rest[0])
			if err != nil {
				return "", err
			}
			verb := "would not"
			if yes {
				verb = "would"
				err = e.AcceptProposal(who, i)
			} else {
				err = e.RejectProposal(who, i)
			}
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Confirmed that %s %s be able to attend %q on %s.",
				who.Mention(s.dir), verb, e.Name(), dateOf(e, i)), nil
		})
}

func acceptCommand() *cli.Command { return voteCommand("accept", "Accept a proposed date.", true) }
func rejectCommand() *cli.Command { return voteCommand("reject", "Reject a proposed date.", false) }

func finalResponseCommand(name, usage string, yes bool) *cli.Command {
	return eventCommand(name, usage, "ID", 0, []cli.Flag{forFlag},
		func(c *cli.Context, s *session, e *event.Event, _ []string) (string, error) {
			who, err := s.participant(c)
			if err != nil {
				return "", err
			}
			verb := "will not"
			if yes {
				verb = "will"
				err = e.Confirm(who)
			} else {
				err = e.Decline(who)
			}
			if err != nil {
				return "", err
			}
			i, _ := e.FinalIndex()
			return fmt.Sprintf("Confirmed that %s %s be able to attend %q on %s.",
				who.Mention(s.dir), verb, e.Name(), dateOf(e, i)), nil
		})
}

func confirmCommand() *cli.Command {
	return finalResponseCommand("confirm", "Confirm attendance on the final date.", true)
}

func declineCommand() *cli.Command {
	return finalResponseCommand("decline", "Decline the final date.", false)
}

func finalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "finalize",
		Usage:     "Choose the final date. INDEX may be omitted when only one date is proposed.",
		ArgsUsage: "ID [INDEX]",
		Action: action(func(c *cli.Context, s *session) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return fmt.Errorf("usage: finalize ID [INDEX]")
			}
			index := event.Unspecified
			if c.NArg() == 2 {
				i, err := parseIndex(c.Args().Get(1))
				if err != nil {
					return err
				}
				index = i
			}
			return s.update(func(st *store.Store) (string, error) {
				e, err := st.Events.Lookup(c.Args().First())
				if err != nil {
					return "", err
				}
				if err := e.Finalize(index); err != nil {
					return "", err
				}
				return line(e), nil
			})
		}),
	}
}

func unfinalizeCommand() *cli.Command {
	return eventCommand("unfinalize", "Reopen a finalized event.", "ID", 0, nil,
		func(_ *cli.Context, _ *session, e *event.Event, _ []string) (string, error) {
			e.Unfinalize()
			return line(e), nil
		})
}

func renameCommand() *cli.Command {
	return eventCommand("rename", "Change an event's display name.", "ID NAME", 1, nil,
		func(_ *cli.Context, _ *session, e *event.Event, rest []string) (string, error) {
			e.SetName(rest[0])
			return line(e), nil
		})
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete an event.",
		ArgsUsage: "ID",
		Action: action(func(c *cli.Context, s *session) error {
			a, err := args(c, 1, "ID")
			if err != nil {
				return err
			}
			return s.update(func(st *store.Store) (string, error) {
				e, err := st.Events.Lookup(a[0])
				if err != nil {
					return "", err
				}
				if err := st.Events.Delete(a[0]); err != nil {
					return "", err
				}
				return fmt.Sprintf("Event %q has been deleted.", e.Name()), nil
			})
		}),
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "name", Usage: "Only events whose name contains this (case-insensitive)"},
		&cli.StringFlag{Name: "before", Usage: "Only events before a date, or \"now\""},
		&cli.StringFlag{Name: "after", Usage: "Only events after a date, or \"now\""},
		&cli.BoolFlag{Name: "finalized", Usage: "Only events with a final date"},
		&cli.BoolFlag{Name: "unfinalized", Usage: "Only events without a final date"},
		&cli.StringFlag{Name: "invited", Usage: "Only events that invited this participant"},
	}
}

// filter builds an event.Filter from filterFlags. set reports whether any
// flag was given.
func (s *session) filter(c *cli.Context) (f event.Filter, set bool, err error) {
	if c.Bool("finalized") && c.Bool("unfinalized") {
		return f, false, errors.New("--finalized and --unfinalized are mutually exclusive")
	}
	instant := func(raw string) (time.Time, error) {
		if strings.EqualFold(strings.TrimSpace(raw), "now") {
			return time.Now().In(s.loc), nil
		}
		ts, err := s.parseSpan(raw)
		return ts.Start(), err
	}

	f.Name = c.String("name")
	if raw := c.String("before"); raw != "" {
		if f.Before, err = instant(raw); err != nil {
			return f, false, err
		}
	}
	if raw := c.String("after"); raw != "" {
		if f.After, err = instant(raw); err != nil {
			return f, false, err
		}
	}
	f.Finalized = c.Bool("finalized")
	f.Unfinalized = c.Bool("unfinalized")
	if who := c.String("invited"); who != "" {
		f.Invited = s.dir.Resolve(who)
	}

	set = f.Name != "" || !f.Before.IsZero() || !f.After.IsZero() ||
		f.Finalized || f.Unfinalized || !f.Invited.IsZero()
	return f, set, nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List planned events. Without filters only upcoming events are shown.",
		Flags: append(filterFlags(),
			&cli.BoolFlag{Name: "all", Usage: "Show all events"},
		),
		Action: action(func(c *cli.Context, s *session) error {
			f, set, err := s.filter(c)
			if err != nil {
				return err
			}
			if c.Bool("all") && set {
				return errors.New("--all cannot be combined with other filters")
			}
			if !c.Bool("all") && !set {
				f.After = time.Now().In(s.loc)
			}
			return s.read(func(st *store.Store) (string, error) {
				found := st.Events.Search(f)
				lines, err := present.Lines(found)
				if err != nil {
					return "", err
				}
				header := fmt.Sprintf("_Showing %d of %s_", found.Len(), plural(st.Events.Len(), "event"))
				if lines == "" {
					return header, nil
				}
				return header + "\n" + lines, nil
			})
		}),
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write matching events as an iCalendar feed to stdout.",
		Flags: filterFlags(),
		Action: action(func(c *cli.Context, s *session) error {
			f, _, err := s.filter(c)
			if err != nil {
				return err
			}
			return s.read(func(st *store.Store) (string, error) {
				return ics.Export(st.Events.Search(f), s.cfg.CalendarName, s.loc, s.dir)
			})
		}),
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List saved snapshots, oldest first.",
		Action: action(func(c *cli.Context, s *session) error {
			times, err := s.repo.History()
			if err != nil {
				return err
			}
			for _, t := range times {
				fmt.Fprintln(s.out, t.Format(time.RFC3339Nano))
			}
			return nil
		}),
	}
}

func restoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Make a saved snapshot the current state.",
		ArgsUsage: "TIME",
		Action: action(func(c *cli.Context, s *session) error {
			a, err := args(c, 1, "TIME")
			if err != nil {
				return err
			}
			at, err := time.Parse(time.RFC3339Nano, a[0])
			if err != nil {
				return fmt.Errorf("snapshot time %q: %w", a[0], err)
			}
			data, err := s.repo.LoadAt(at)
			if err != nil {
				return err
			}
			st, err := store.Decode(data, s.dir)
			if err != nil {
				return err
			}
			if err := s.repo.Save(data); err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Restored %s from %s.\n", plural(st.Events.Len(), "event"), at.Format(time.RFC3339))
			return nil
		}),
	}
}
