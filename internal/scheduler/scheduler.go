// Package scheduler runs the load pipeline on a cron schedule and rebuilds
// the marts whenever a load completes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ZYusuff/hr-analytics-cloud-deployment/internal/pipeline"
)

// LoadFunc runs one load.
type LoadFunc func(ctx context.Context) (pipeline.LoadInfo, error)

// Scheduler wraps robfig/cron and manages the load loop.
type Scheduler struct {
	cron       *cron.Cron
	chain      cron.Chain
	spec       string
	load       LoadFunc
	runOnStart bool
	logger     *slog.Logger
	started    sync.WaitGroup
	stopOnce   sync.Once
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// RunOnStart also runs one load immediately when the scheduler starts.
func RunOnStart() Option {
	return func(s *Scheduler) { s.runOnStart = true }
}

// New creates a Scheduler for a five-field cron spec evaluated in UTC.
func New(spec string, load LoadFunc, opts ...Option) *Scheduler {
	logger := slog.Default().With("component", "scheduler")
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger{logger}),
		),
		chain:  cron.NewChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger})),
		spec:   spec,
		load:   load,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the job and starts the scheduler. Ticks and the optional
// run on start share one job, so a load never overlaps another.
func (s *Scheduler) Start(ctx context.Context) error {
	job := s.chain.Then(cron.FuncJob(func() { s.RunOnce(ctx) }))
	id, err := s.cron.AddJob(s.spec, job)
	if err != nil {
		return fmt.Errorf("cron.AddJob(%q): %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started", "spec", s.spec, "next", s.cron.Entry(id).Next)

	if s.runOnStart {
		s.started.Add(1)
		go func() {
			defer s.started.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop halts the scheduler and waits for a running load to finish. It is
// safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.started.Wait()
		s.logger.Info("cron stopped")
	})
}

// RunOnce runs a single load and logs its outcome. Failures wait for the
// next tick; there is no retry.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.logger.Info("load started")
	info, err := s.load(ctx)
	if err != nil {
		s.logger.Error("load failed", "load_id", info.LoadID, "err", err)
		return
	}
	s.logger.Info("load complete", "load_id", info.LoadID, "records", info.Records, "elapsed", info.Elapsed)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "err", err)...)
}
