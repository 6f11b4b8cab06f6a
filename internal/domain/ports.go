package domain

import (
	"context"
	"encoding/json"
)

type ListingRepository interface {
	// Write path
	Upsert(ctx context.Context, l Listing) (Listing, error)

	// Read paths
	Query(ctx context.Context, f Filter) ([]Listing, error)
	ListSources(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}

// Fetcher retrieves the raw items published by one source.
// A bare object payload yields one item, an array yields one per element.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]json.RawMessage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
