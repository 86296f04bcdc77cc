package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/shopora/shopora-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestRunCycleIsolatesJobFailures(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	failing := &testJob{name: "fail", err: errors.New("boom")}
	healthy := &testJob{name: "ok"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(failing, healthy),
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if failing.runs != 1 || healthy.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", failing.runs, healthy.runs)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	job := &testJob{name: "ok"}
	lock := &fakeLock{held: true}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped while lock held, ran %d", job.runs)
	}
	if lock.acquires != 1 {
		t.Fatalf("expected single acquire attempt, got %d", lock.acquires)
	}
}

type hookJob struct {
	name string
	run  func(ctx context.Context) error
}

func (h *hookJob) Name() string                  { return h.name }
func (h *hookJob) Run(ctx context.Context) error { return h.run(ctx) }

func TestRunCycleSurvivesShutdownSignal(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var observed error
	job := &hookJob{
		name: "sweep",
		run: func(jobCtx context.Context) error {
			cancel()
			observed = jobCtx.Err()
			return nil
		},
	}
	follower := &testJob{name: "follower"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job, follower),
		Lock:     &fakeLock{},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if observed != nil {
		t.Fatalf("running sweep observed cancellation: %v", observed)
	}
	if follower.runs != 1 {
		t.Fatalf("expected follower job to run after shutdown signal, ran %d", follower.runs)
	}
}

func TestRunCycleReleasesLock(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "cron-test"})
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(&testJob{name: "ok"}),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if lock.held {
		t.Fatal("expected lock released after cycle")
	}
}
