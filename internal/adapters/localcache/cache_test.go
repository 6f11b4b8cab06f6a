package localcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayhub/internal/adapters/localcache"
)

func TestCache_RoundTripReturnsCopies(t *testing.T) {
	c := localcache.New(time.Minute)
	ctx := context.Background()

	in := []string{"source1", "source2"}
	require.NoError(t, c.Set(ctx, "listings:sources", in, 60))
	in[0] = "mutated"

	var got []string
	ok, err := c.Get(ctx, "listings:sources", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"source1", "source2"}, got)

	require.NoError(t, c.Del(ctx, "listings:sources"))
	ok, err = c.Get(ctx, "listings:sources", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := localcache.New(time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, 1))

	time.Sleep(1100 * time.Millisecond)
	var n int
	ok, err := c.Get(ctx, "k", &n)
	require.NoError(t, err)
	assert.False(t, ok)
}
