package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"planner/internal/config"
	"planner/internal/event"
	"planner/internal/identity"
	"planner/internal/invitee"
	appLog "planner/internal/log"
	"planner/internal/persist/boltdb"
	"planner/internal/planner"
	"planner/internal/scheduler"
	"planner/internal/store"
	"planner/internal/web"
)

const version = "0.3.0"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		if reply := event.Reply(err); reply != "" {
			fmt.Fprintln(os.Stderr, reply)
		} else {
			appLog.Error("planner failed", err)
		}
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "planner",
		Usage:   "Propose, vote on and finalize dates for group events.",
		Version: version,
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "planner.yaml",
				Usage:   "Path to config file",
				EnvVars: []string{"PLANNER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "as",
				Usage:   "Participant running the command (user id, @id or free-form name)",
				EnvVars: []string{"PLANNER_USER"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			createCommand(),
			showCommand(),
			proposeCommand(),
			unproposeCommand(),
			inviteCommand(),
			uninviteCommand(),
			acceptCommand(),
			rejectCommand(),
			confirmCommand(),
			declineCommand(),
			finalizeCommand(),
			unfinalizeCommand(),
			renameCommand(),
			deleteCommand(),
			listCommand(),
			exportCommand(),
			importCommand(),
			emailCommand(),
			historyCommand(),
			restoreCommand(),
		},
	}
}

// session is everything a command needs, built from the global flags.
type session struct {
	cfg   *config.Config
	loc   *time.Location
	dir   *identity.Directory
	repo  *boltdb.Repo
	svc   *planner.Service
	out   io.Writer
	actor invitee.Invitee
}

func openSession(c *cli.Context) (*session, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	dir := identity.FromConfig(cfg.Users)
	repo := boltdb.New(boltdb.Config{
		Path:  cfg.DataPath,
		LogFn: func(f string, args ...interface{}) { appLog.Debug(fmt.Sprintf(f, args...)) },
		ErrFn: func(f string, args ...interface{}) { appLog.Error(fmt.Sprintf(f, args...), nil) },
	})
	svc, err := planner.Open(repo, dir)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, loc: loc, dir: dir, repo: repo, svc: svc, out: c.App.Writer}
	if as := c.String("as"); as != "" {
		s.actor = dir.Resolve(as)
	}
	return s, nil
}

// action wraps fn with session setup.
func action(fn func(c *cli.Context, s *session) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := openSession(c)
		if err != nil {
			return err
		}
		return fn(c, s)
	}
}

// update applies fn, persists the result and prints fn's message.
func (s *session) update(fn func(st *store.Store) (string, error)) error {
	var msg string
	err := s.svc.Update(func(st *store.Store) error {
		var err error
		msg, err = fn(st)
		return err
	})
	if err != nil {
		return err
	}
	if err := s.svc.Snapshot(); err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintln(s.out, msg)
	}
	return nil
}

// read runs fn under the service lock and prints its message.
func (s *session) read(fn func(st *store.Store) (string, error)) error {
	var msg string
	err := s.svc.Read(func(st *store.Store) error {
		var err error
		msg, err = fn(st)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, msg)
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and sync the store with the data file on a schedule.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen address (overrides config if set)"},
		},
		Action: action(func(c *cli.Context, s *session) error {
			if l := c.String("listen"); l != "" {
				s.cfg.Listen = l
			}

			appLog.Info("planner starting", "version", version)
			appLog.Info("effective config",
				"listen", s.cfg.Listen,
				"timezone", s.cfg.Timezone,
				"data_path", s.cfg.DataPath,
				"snapshot", s.cfg.SnapshotCron,
				"users", s.dir.Len(),
			)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			go func() {
				select {
				case sig := <-sigCh:
					appLog.Info("signal received, shutting down", "signal", sig.String())
					cancel()
				case <-ctx.Done():
				}
			}()

			sched, err := scheduler.New("sync", s.cfg.SnapshotCron, s.loc, s.svc.Sync)
			if err != nil {
				return err
			}
			srv := web.NewServer(s.cfg, s.svc, s.loc)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				sched.Run(gctx)
				return nil
			})
			g.Go(func() error { return srv.Serve(gctx) })
			serveErr := g.Wait()

			if err := s.svc.Snapshot(); err != nil {
				appLog.Error("final snapshot failed", err)
			}
			appLog.Info("planner exiting")
			return serveErr
		}),
	}
}
