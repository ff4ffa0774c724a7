package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	Seller string `json:"seller"`
}

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()

	var got entry
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", entry{Seller: "alice"}, 0))
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "alice", got.Seller)

	require.NoError(t, c.Delete(ctx, "k"))
	hit, _ = c.Get(ctx, "k", &got)
	assert.False(t, hit)
}

func TestInMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()

	require.NoError(t, c.Set(ctx, "k", entry{Seller: "bob"}, time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got entry
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAsyncCacheSet_NilCacheIsNoop(t *testing.T) {
	AsyncCacheSet(nil, "k", entry{}, 0, zap.NewNop())
	AsyncCacheDelete(nil, "k", zap.NewNop())
}

func TestAsyncCacheSet_Eventually(t *testing.T) {
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()

	AsyncCacheSet(c, "k", entry{Seller: "carol"}, 0, zap.NewNop())

	assert.Eventually(t, func() bool {
		var got entry
		hit, _ := c.Get(context.Background(), "k", &got)
		return hit && got.Seller == "carol"
	}, time.Second, 5*time.Millisecond)
}
