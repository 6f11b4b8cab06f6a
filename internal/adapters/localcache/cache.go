// Package localcache is the in-process domain.Cache used when no Redis
// address is configured.
package localcache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"stayhub/internal/adapters/observability"
)

type Cache struct{ c *gocache.Cache }

func New(cleanup time.Duration) *Cache {
	if cleanup <= 0 {
		cleanup = time.Minute
	}
	return &Cache{c: gocache.New(gocache.NoExpiration, cleanup)}
}

// Values are stored JSON-encoded so callers get copies, like with Redis.
func (l *Cache) Get(_ context.Context, key string, dst any) (bool, error) {
	v, ok := l.c.Get(key)
	if !ok {
		observability.ObserveCache("local", "miss")
		return false, nil
	}
	b, _ := v.([]byte)
	if err := json.Unmarshal(b, dst); err != nil {
		observability.ObserveCache("local", "miss")
		return false, nil
	}
	observability.ObserveCache("local", "hit")
	return true, nil
}

func (l *Cache) Set(_ context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	observability.ObserveCache("local", "set")
	l.c.Set(key, b, time.Duration(ttlSec)*time.Second)
	return nil
}

func (l *Cache) Del(_ context.Context, key string) error {
	observability.ObserveCache("local", "del")
	l.c.Delete(key)
	return nil
}
