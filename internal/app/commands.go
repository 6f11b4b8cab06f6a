package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"stayhub/internal/adapters/observability"
	"stayhub/internal/domain"
)

// Cache keys for read models that change whenever an ingestion run writes.
const (
	cacheKeySources = "listings:sources"
	cacheKeyStats   = "listings:stats"
)

type IngestionService struct {
	fetch   domain.Fetcher
	repo    domain.ListingRepository
	cache   domain.Cache
	sources []domain.Source
	workers int
	only    map[string]struct{}
	now     func() time.Time
	log     zerolog.Logger
	runs    singleflight.Group

	mu   sync.Mutex
	last domain.RunReport

	// odd while a run is writing; bumped again once read models are invalidated
	gen atomic.Uint64
}

type Option func(*IngestionService)

func WithCache(c domain.Cache) Option { return func(s *IngestionService) { s.cache = c } }

// WithWorkers bounds how many sources are fetched concurrently.
func WithWorkers(n int) Option {
	return func(s *IngestionService) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *IngestionService) { s.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(s *IngestionService) { s.log = l } }

// WithSourceNames restricts runs to the named registry entries.
func WithSourceNames(names ...string) Option {
	return func(s *IngestionService) {
		if len(names) == 0 {
			return
		}
		s.only = make(map[string]struct{}, len(names))
		for _, n := range names {
			s.only[n] = struct{}{}
		}
	}
}

func NewIngestionService(f domain.Fetcher, r domain.ListingRepository, sources []domain.Source, opts ...Option) *IngestionService {
	s := &IngestionService{
		fetch:   f,
		repo:    r,
		sources: sources,
		workers: 1,
		now:     time.Now,
		log:     log.Logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upsert normalizes one raw item and stores it under (originalID, source).
// An empty originalID falls back to the id carried by the item.
func (s *IngestionService) Upsert(ctx context.Context, originalID, source string, raw json.RawMessage) (domain.Listing, error) {
	l, err := Normalize(source, raw)
	if err != nil {
		return domain.Listing{}, err
	}
	if originalID != "" {
		l.OriginalID = originalID
	}
	return s.repo.Upsert(ctx, l)
}

// Run ingests every configured source once. It never fails as a whole:
// fetch and item failures are logged and reported per source.
// Calls that overlap an in-flight run share its report.
func (s *IngestionService) Run(ctx context.Context) domain.RunReport {
	v, _, shared := s.runs.Do("run", func() (any, error) {
		return s.run(ctx), nil
	})
	rep := v.(domain.RunReport)
	if shared {
		s.log.Debug().Str("run_id", rep.RunID).Msg("joined in-flight ingestion run")
	}
	return rep
}

// LastRun returns the in-flight run's header while running, otherwise the
// last finished report. Before the first run its status is idle.
func (s *IngestionService) LastRun() domain.RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last.Status == "" {
		return domain.RunReport{Status: domain.RunIdle}
	}
	rep := s.last
	rep.Sources = append([]domain.SourceReport(nil), s.last.Sources...)
	return rep
}

// Generation implements WriteTracker.
func (s *IngestionService) Generation() uint64 { return s.gen.Load() }

func (s *IngestionService) setLast(rep domain.RunReport) {
	s.mu.Lock()
	s.last = rep
	s.mu.Unlock()
}

func (s *IngestionService) run(ctx context.Context) domain.RunReport {
	rep := domain.RunReport{
		RunID:     uuid.NewString(),
		Status:    domain.RunRunning,
		StartedAt: s.now(),
	}
	s.setLast(rep)
	s.gen.Add(1)
	defer s.gen.Add(1)
	l := s.log.With().Str("run_id", rep.RunID).Logger()
	selected := s.selected()
	l.Info().Int("sources", len(selected)).Msg("starting data ingestion")

	rep.Sources = make([]domain.SourceReport, len(selected))

	sem := semaphore.NewWeighted(int64(s.workers))
	var wg sync.WaitGroup
	for i, src := range selected {
		rep.Sources[i] = domain.SourceReport{Name: src.Name, URL: src.URL}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			rep.Sources[i].Error = fmt.Sprintf("not started: %v", err)
			l.Warn().Str("source", src.Name).Err(err).Msg("ingestion cancelled before source")
			continue
		}
		wg.Add(1)
		go func(i int, src domain.Source) {
			defer wg.Done()
			defer sem.Release(1)
			// a panic here would bypass every caller's recover and end the process
			defer func() {
				if r := recover(); r != nil {
					rep.Sources[i].Fetched = false
					rep.Sources[i].Error = fmt.Sprintf("panic: %v", r)
					l.Error().
						Str("source", src.Name).
						Interface("panic", r).
						Bytes("stack", debug.Stack()).
						Msg("source ingestion panicked")
				}
			}()
			rep.Sources[i] = s.ingestSource(ctx, l, src)
		}(i, src)
	}
	wg.Wait()

	rep.FinishedAt = s.now()
	rep.Status = domain.RunCompleted
	for _, sr := range rep.Sources {
		if !sr.Fetched || sr.Failed > 0 {
			rep.Status = domain.RunCompletedWithErrors
			break
		}
	}

	s.setLast(rep)

	items, upserted, failed := rep.Totals()
	if upserted > 0 {
		s.invalidateReadModels(context.WithoutCancel(ctx))
	}
	observability.ObserveRun(string(rep.Status), rep.Duration())
	l.Info().
		Str("status", string(rep.Status)).
		Int("items", items).
		Int("upserted", upserted).
		Int("failed", failed).
		Int("failed_sources", rep.FailedSources()).
		Dur("duration", rep.Duration()).
		Msg("data ingestion completed")
	return rep
}

func (s *IngestionService) selected() []domain.Source {
	if s.only == nil {
		return s.sources
	}
	out := make([]domain.Source, 0, len(s.only))
	for _, src := range s.sources {
		if _, ok := s.only[src.Name]; ok {
			out = append(out, src)
		}
	}
	return out
}

// ingestSource fetches one source and upserts its items one by one.
func (s *IngestionService) ingestSource(ctx context.Context, l zerolog.Logger, src domain.Source) domain.SourceReport {
	sr := domain.SourceReport{Name: src.Name, URL: src.URL}
	l = l.With().Str("source", src.Name).Logger()
	if !KnownSource(src.Name) {
		l.Warn().Msg("no field mapping for source, storing minimal records")
	}

	l.Info().Str("url", src.URL).Msg("fetching source")
	items, err := s.fetch.Fetch(ctx, src)
	if err != nil {
		sr.Error = err.Error()
		observability.ObserveFetch(src.Name, "error")
		l.Error().Err(err).Msg("fetch failed, skipping source")
		return sr
	}
	sr.Fetched = true
	sr.Items = len(items)
	observability.ObserveFetch(src.Name, "ok")
	l.Info().Int("items", len(items)).Msg("fetched source")

	for i, item := range items {
		if ctx.Err() != nil {
			sr.Failed += len(items) - i
			sr.Error = ctx.Err().Error()
			l.Warn().Err(ctx.Err()).Int("remaining", len(items)-i).Msg("ingestion cancelled mid-source")
			break
		}
		if err := s.upsertItem(ctx, src.Name, item); err != nil {
			var mi *domain.MalformedItemError
			if errors.As(err, &mi) {
				mi.Index = i
			}
			sr.Failed++
			observability.ObserveItem(src.Name, "failed")
			l.Warn().Err(err).Int("index", i).Msg("item skipped")
			continue
		}
		sr.Upserted++
		observability.ObserveItem(src.Name, "upserted")
	}

	l.Info().Int("upserted", sr.Upserted).Int("failed", sr.Failed).Msg("source processed")
	return sr
}

// upsertItem turns a panic while storing one item into an item failure.
func (s *IngestionService) upsertItem(ctx context.Context, source string, item json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("source", source).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("upsert panicked")
			err = fmt.Errorf("upsert panicked: %v", r)
		}
	}()
	_, err = s.Upsert(ctx, "", source, item)
	return err
}

func (s *IngestionService) invalidateReadModels(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, k := range []string{cacheKeySources, cacheKeyStats} {
		if err := s.cache.Del(ctx, k); err != nil {
			s.log.Warn().Err(err).Str("key", k).Msg("cache invalidation failed")
		}
	}
}
