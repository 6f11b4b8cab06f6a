package app

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"stayhub/internal/domain"
)

// Runner is one full ingestion pass.
type Runner interface {
	Run(ctx context.Context) domain.RunReport
}

// Scheduler triggers a Runner on a fixed interval. A failing or panicking
// run is logged and the next tick still fires.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	onStart  bool
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type SchedulerOption func(*Scheduler)

// RunOnStart fires one run as soon as Start is called.
func RunOnStart(on bool) SchedulerOption { return func(s *Scheduler) { s.onStart = on } }

func SchedulerLogger(l zerolog.Logger) SchedulerOption { return func(s *Scheduler) { s.log = l } }

func NewScheduler(r Runner, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	s := &Scheduler{runner: r, interval: interval, log: log.Logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches the loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.log.Info().Dur("interval", s.interval).Bool("on_start", s.onStart).Msg("ingestion scheduler started")
}

// Stop cancels the loop and waits for an in-flight tick to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("ingestion scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()

	if s.onStart {
		s.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("scheduled ingestion failed")
		}
	}()

	s.log.Info().Msg("scheduled ingestion triggered")
	rep := s.runner.Run(ctx)
	items, upserted, failed := rep.Totals()
	s.log.Info().
		Str("run_id", rep.RunID).
		Str("status", string(rep.Status)).
		Int("items", items).
		Int("upserted", upserted).
		Int("failed", failed).
		Msg("scheduled ingestion completed")
}
