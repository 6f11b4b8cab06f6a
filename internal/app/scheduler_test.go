package app_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"stayhub/internal/app"
	"stayhub/internal/domain"
)

type countingRunner struct {
	calls   atomic.Int32
	panicOn int32
}

func (r *countingRunner) Run(ctx context.Context) domain.RunReport {
	n := r.calls.Add(1)
	if n == r.panicOn {
		panic("boom")
	}
	return domain.RunReport{RunID: "r", Status: domain.RunCompleted}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestScheduler_KeepsTickingAfterPanic(t *testing.T) {
	r := &countingRunner{panicOn: 1}
	s := app.NewScheduler(r, 10*time.Millisecond, app.SchedulerLogger(zerolog.Nop()))

	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return r.calls.Load() >= 3 })
}

func TestScheduler_RunOnStart(t *testing.T) {
	r := &countingRunner{}
	s := app.NewScheduler(r, time.Hour, app.RunOnStart(true), app.SchedulerLogger(zerolog.Nop()))

	s.Start(context.Background())
	waitFor(t, func() bool { return r.calls.Load() == 1 })
	s.Stop()
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	r := &countingRunner{}
	s := app.NewScheduler(r, time.Hour, app.SchedulerLogger(zerolog.Nop()))
	s.Stop()
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
	if r.calls.Load() != 0 {
		t.Fatalf("no tick expected, got %d", r.calls.Load())
	}
}
