// Package scheduler runs periodic jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "planner/internal/log"
)

// cronLogger forwards cron's own diagnostics to the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) { appLog.Debug("cron: "+msg, kv...) }

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// Scheduler runs one named job. Overlapping runs are skipped.
type Scheduler struct {
	c    *cron.Cron
	id   cron.EntryID
	name string
}

// New parses spec (standard 5-field cron or a descriptor such as
// "@every 5m") in loc and binds job to it. Errors returned by job are
// logged.
func New(name, spec string, loc *time.Location, job func() error) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	id, err := c.AddFunc(spec, func() {
		started := time.Now()
		if err := job(); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job done", "job", name, "took", time.Since(started).String())
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: %s: invalid schedule %q: %w", name, spec, err)
	}
	return &Scheduler{c: c, id: id, name: name}, nil
}

func (s *Scheduler) Start() {
	s.c.Start()
	appLog.Info("scheduler started", "job", s.name, "next", s.Next().Format(time.RFC3339))
}

// Next is the next activation, zero before Start.
func (s *Scheduler) Next() time.Time { return s.c.Entry(s.id).Next }

// Stop halts the schedule and waits for a running job or ctx, whichever
// finishes first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
		appLog.Info("scheduler stop timed out", "job", s.name)
	}
}

// Run starts the scheduler and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start()
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Stop(stopCtx)
}
