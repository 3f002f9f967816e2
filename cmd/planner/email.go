package main

import (
	"errors"
	"strings"

	"github.com/urfave/cli/v2"

	"planner/internal/invitee"
	"planner/internal/store"
)

func emailCommand() *cli.Command {
	return &cli.Command{
		Name:      "email",
		Usage:     "View or modify your recognized email addresses.",
		ArgsUsage: "[ADDRESS]",
		Flags: []cli.Flag{
			forFlag,
			&cli.BoolFlag{Name: "default", Usage: "Use ADDRESS for created events and accepted invitations"},
			&cli.BoolFlag{Name: "delete", Usage: "Remove ADDRESS"},
		},
		Action: action(func(c *cli.Context, s *session) error {
			who, err := s.participant(c)
			if err != nil {
				return err
			}
			if who.Kind() != invitee.KindIdentified {
				return errors.New("email addresses can only be kept for participants with a user id")
			}
			uid := who.Show()

			if c.NArg() == 0 {
				return s.read(func(st *store.Store) (string, error) {
					return describeEmails(st.Emails, uid), nil
				})
			}

			address := strings.TrimSpace(c.Args().First())
			return s.update(func(st *store.Store) (string, error) {
				if c.Bool("delete") {
					if err := st.Emails.Remove(uid, address); err != nil {
						return "", err
					}
				} else {
					st.Emails.Add(uid, address, c.Bool("default"))
				}
				return describeEmails(st.Emails, uid), nil
			})
		}),
	}
}

// describeEmails marks the directory address with :slack: and the default
// with :star:.
func describeEmails(emails *store.EmailStore, uid string) string {
	known := emails.Known(uid)
	if len(known) == 0 {
		return "I don't know any email addresses for you yet. Care to set one?\n" +
			"```\nplanner email <address>\n```"
	}

	def := emails.Default(uid)
	directory := emails.DirectoryAddress(uid)
	out := make([]string, 0, len(known))
	for _, email := range known {
		var parts []string
		italic, bold := "", ""
		if email == directory {
			parts = append(parts, ":slack:")
			italic = "_"
		}
		if email == def {
			parts = append(parts, ":star:")
			bold = "*"
		}
		parts = append(parts, italic+bold+email+bold+italic)
		out = append(out, strings.Join(parts, " "))
	}
	return strings.Join(out, ", ")
}

