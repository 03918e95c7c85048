// Package scheduler triggers search cycles on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/TobiSchelling/newsjacker/internal/logging"
	"github.com/TobiSchelling/newsjacker/internal/pipeline"
)

// Runner runs one scheduled cycle.
type Runner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleReport, error)
}

// Scheduler wraps robfig/cron. A tick that fires while the previous cycle is
// still running is skipped, including the cycle run at start.
type Scheduler struct {
	cron   *cron.Cron
	chain  cron.Chain
	runner Runner
	spec   string
	wg     sync.WaitGroup
}

// New creates a Scheduler for a cron spec such as "@every 1h".
func New(runner Runner, spec string) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(logger)),
		chain:  cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		runner: runner,
		spec:   spec,
	}
}

// Start registers the cycle and starts the scheduler. One cycle also runs
// immediately so opportunities appear without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	job := s.chain.Then(cron.FuncJob(func() { s.run(ctx) }))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("cron.AddJob(%q): %w", s.spec, err)
	}

	s.cron.Start()
	logging.Info("scheduler started", "spec", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()
	return nil
}

// Stop stops the scheduler and waits for running cycles to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	logging.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.RunCycle(ctx)
	if err != nil {
		logging.Error("scheduled cycle failed", "error", err)
		return
	}
	logging.Info("scheduled cycle complete", "run_id", report.RunID, "summary", report.Summary())
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
