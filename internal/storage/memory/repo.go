// Package memory is an in-process ListingRepository. It backs tests and
// local runs without MySQL and shares Filter.Matches as its query predicate.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"stayhub/internal/domain"
)

type key struct{ originalID, source string }

type Repo struct {
	mu     sync.RWMutex
	rows   []domain.Listing // insertion order is the natural order
	index  map[key]int
	nextID int64
	now    func() time.Time
}

func New() *Repo {
	return &Repo{index: map[key]int{}, now: time.Now}
}

// NewWithClock is New with a deterministic clock for tests.
func NewWithClock(now func() time.Time) *Repo {
	r := New()
	r.now = now
	return r
}

var errMissingKey = errors.New("originalId and source are required")

// Upsert inserts or updates under one lock. Fields the incoming listing
// leaves unset keep their stored value; RawData is always replaced.
func (r *Repo) Upsert(ctx context.Context, l domain.Listing) (domain.Listing, error) {
	if l.OriginalID == "" || l.Source == "" {
		return domain.Listing{}, &domain.StoreError{Op: "upsert", Err: errMissingKey}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	k := key{l.OriginalID, l.Source}
	if i, ok := r.index[k]; ok {
		cur := r.rows[i]
		mergeInto(&cur, l)
		cur.UpdatedAt = now
		r.rows[i] = cur
		return clone(cur), nil
	}

	r.nextID++
	l = clone(l)
	l.ID = r.nextID
	l.CreatedAt, l.UpdatedAt = now, now
	r.index[k] = len(r.rows)
	r.rows = append(r.rows, l)
	return clone(l), nil
}

func (r *Repo) Query(ctx context.Context, f domain.Filter) ([]domain.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Listing, 0, len(r.rows))
	for _, l := range r.rows {
		if f.Matches(l) {
			out = append(out, clone(l))
		}
	}
	return out, nil
}

func (r *Repo) ListSources(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, l := range r.rows {
		if _, ok := seen[l.Source]; !ok {
			seen[l.Source] = struct{}{}
			out = append(out, l.Source)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Repo) Stats(ctx context.Context) (domain.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := domain.Stats{TotalCount: int64(len(r.rows)), PerSource: map[string]int64{}}
	for _, l := range r.rows {
		st.PerSource[l.Source]++
	}
	return st, nil
}

func mergeInto(dst *domain.Listing, src domain.Listing) {
	src = clone(src)
	if src.Name != nil {
		dst.Name = src.Name
	}
	if src.City != nil {
		dst.City = src.City
	}
	if src.Country != nil {
		dst.Country = src.Country
	}
	if src.Address != nil {
		if dst.Address == nil {
			dst.Address = &domain.Address{}
		}
		if src.Address.City != nil {
			dst.Address.City = src.Address.City
		}
		if src.Address.Country != nil {
			dst.Address.Country = src.Address.Country
		}
	}
	if src.Availability != nil {
		dst.Availability = src.Availability
	}
	if src.IsAvailable != nil {
		dst.IsAvailable = src.IsAvailable
	}
	if src.PriceForNight != nil {
		dst.PriceForNight = src.PriceForNight
	}
	if src.PricePerNight != nil {
		dst.PricePerNight = src.PricePerNight
	}
	if src.PriceSegment != nil {
		dst.PriceSegment = src.PriceSegment
	}
	dst.RawData = src.RawData
}

// clone copies every pointer field so callers never alias stored rows.
func clone(l domain.Listing) domain.Listing {
	out := l
	out.Name = cp(l.Name)
	out.City = cp(l.City)
	out.Country = cp(l.Country)
	out.Availability = cp(l.Availability)
	out.IsAvailable = cp(l.IsAvailable)
	out.PriceForNight = cp(l.PriceForNight)
	out.PricePerNight = cp(l.PricePerNight)
	out.PriceSegment = cp(l.PriceSegment)
	if l.Address != nil {
		out.Address = &domain.Address{City: cp(l.Address.City), Country: cp(l.Address.Country)}
	}
	if l.RawData != nil {
		out.RawData = append(json.RawMessage(nil), l.RawData...)
	}
	return out
}

func cp[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
