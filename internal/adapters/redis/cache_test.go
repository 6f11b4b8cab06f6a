package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "stayhub/internal/adapters/redis"
	"stayhub/internal/domain"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))

	var st domain.Stats
	ok, err := c.Get(ctx, "listings:stats", &st)
	require.NoError(t, err)
	assert.False(t, ok)

	in := domain.Stats{TotalCount: 3, PerSource: map[string]int64{"source1": 2, "source2": 1}}
	require.NoError(t, c.Set(ctx, "listings:stats", in, 60))
	assert.True(t, mr.Exists("stayhub:listings:stats"))

	ok, err = c.Get(ctx, "listings:stats", &st)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, st)

	require.NoError(t, c.Del(ctx, "listings:stats"))
	ok, err = c.Get(ctx, "listings:stats", &st)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_TTLExpires(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "listings:sources", []string{"source1"}, 5))
	mr.FastForward(6 * time.Second)

	var got []string
	ok, err := c.Get(ctx, "listings:sources", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_UndecodableValueIsMiss(t *testing.T) {
	c, mr := newCache(t)
	require.NoError(t, mr.Set("stayhub:listings:sources", "not-json"))

	var got []string
	ok, err := c.Get(context.Background(), "listings:sources", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
