package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corra-ai/corra-ai/pkg/cache"
	"github.com/corra-ai/corra-ai/pkg/types"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetEx(ctx, "k", "v", time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Del(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.Error(t, err)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetEx(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.Error(t, err)
}

func TestBlockListService(t *testing.T) {
	ctx := context.Background()
	svc := cache.NewBlockListService(cache.NewMemoryCache(), time.Minute)

	_, ok := svc.Get(ctx, types.SCOPE_THREAD, "owner-1")
	assert.False(t, ok)

	matches := []types.BlockMatch{
		{BlockID: "b1", EntryID: "e1", Content: "hello", Score: 0.8},
	}
	svc.Set(ctx, types.SCOPE_THREAD, "owner-1", matches)

	got, ok := svc.Get(ctx, types.SCOPE_THREAD, "owner-1")
	require.True(t, ok)
	assert.Equal(t, matches, got)

	// 不同作用域互不串缓存
	_, ok = svc.Get(ctx, types.SCOPE_AGENT, "owner-1")
	assert.False(t, ok)

	require.NoError(t, svc.Invalidate(ctx, types.SCOPE_THREAD, "owner-1"))
	_, ok = svc.Get(ctx, types.SCOPE_THREAD, "owner-1")
	assert.False(t, ok)
}
