package app

import (
	"context"
	"time"

	"stayhub/internal/domain"
)

// WriteTracker exposes a counter that is odd while listings are being
// written and changes whenever a write finishes.
type WriteTracker interface {
	Generation() uint64
}

type QueryService struct {
	repo     domain.ListingRepository
	cache    domain.Cache
	cacheTTL time.Duration
	writes   WriteTracker
}

type QueryOption func(*QueryService)

// WithWriteTracker stops reads that overlap an ingestion run from
// repopulating the cache with pre-run values.
func WithWriteTracker(w WriteTracker) QueryOption { return func(s *QueryService) { s.writes = w } }

func NewQueryService(r domain.ListingRepository, c domain.Cache, ttl time.Duration, opts ...QueryOption) *QueryService {
	s := &QueryService{repo: r, cache: c, cacheTTL: ttl}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Query is never cached: result sets are unbounded and change on every run.
func (s *QueryService) Query(ctx context.Context, f domain.Filter) ([]domain.Listing, error) {
	return s.repo.Query(ctx, f)
}

func (s *QueryService) ListSources(ctx context.Context) ([]string, error) {
	var out []string
	if s.cacheGet(ctx, cacheKeySources, &out) {
		return out, nil
	}
	gen := s.generation()
	out, err := s.repo.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKeySources, out, gen)
	return out, nil
}

func (s *QueryService) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	if s.cacheGet(ctx, cacheKeyStats, &st) {
		return st, nil
	}
	gen := s.generation()
	st, err := s.repo.Stats(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	s.cacheSet(ctx, cacheKeyStats, st, gen)
	return st, nil
}

func (s *QueryService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	return ok && err == nil
}

func (s *QueryService) generation() uint64 {
	if s.writes == nil {
		return 0
	}
	return s.writes.Generation()
}

// cacheSet stores v only when no write ran while it was read (gen unchanged and even).
func (s *QueryService) cacheSet(ctx context.Context, key string, v any, gen uint64) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if gen%2 == 1 || s.generation() != gen {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}
