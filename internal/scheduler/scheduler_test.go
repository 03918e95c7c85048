package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TobiSchelling/newsjacker/internal/pipeline"
)

type countingRunner struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *countingRunner) RunCycle(ctx context.Context) (*pipeline.CycleReport, error) {
	c.calls.Add(1)
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}
	return &pipeline.CycleReport{RunID: "run"}, nil
}

func TestStartRunsImmediately(t *testing.T) {
	r := &countingRunner{}
	s := New(r, "@every 1h")
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()

	if got := r.calls.Load(); got != 1 {
		t.Errorf("expected 1 immediate run, got %d", got)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&countingRunner{}, "every tuesday")
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for invalid spec")
	}
}

func TestTicksRunCycles(t *testing.T) {
	r := &countingRunner{}
	s := New(r, "@every 1s")
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2500 * time.Millisecond)
	s.Stop()

	if got := r.calls.Load(); got < 2 {
		t.Errorf("expected at least 2 runs, got %d", got)
	}
}

func TestTickSkippedWhileStartupCycleRuns(t *testing.T) {
	r := &countingRunner{delay: 2200 * time.Millisecond}
	s := New(r, "@every 1s")
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1500 * time.Millisecond)
	if got := r.calls.Load(); got != 1 {
		t.Errorf("expected tick to be skipped during the startup cycle, got %d runs", got)
	}
	s.Stop()
}

func TestStopWaitsForRunningCycle(t *testing.T) {
	r := &countingRunner{delay: 300 * time.Millisecond}
	s := New(r, "@every 1h")
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	s.Stop()
	if time.Since(start) < 200*time.Millisecond {
		t.Error("expected Stop to wait for the running cycle")
	}
}

func TestCanceledContextSkipsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &countingRunner{}
	s := New(r, "@every 1h")
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	s.Stop()

	if got := r.calls.Load(); got != 0 {
		t.Errorf("expected no runs after cancel, got %d", got)
	}
}
