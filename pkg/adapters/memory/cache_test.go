package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/latentscope/pkg/adapters/memory"
	"github.com/aretw0/latentscope/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Contract(t *testing.T) {
	ports.RunFrameCacheContract(t, memory.NewCache(0))
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewCache(2)

	for i := 0; i < 3; i++ {
		require.NoError(t, cache.Put(ctx, fmt.Sprintf("k%d", i), []float32{float32(i)}))
	}
	assert.Equal(t, 2, cache.Len())

	_, ok, err := cache.Get(ctx, "k0")
	require.NoError(t, err)
	assert.False(t, ok, "oldest frame should be evicted")

	v, ok, err := cache.Get(ctx, "k2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{2}, v)
}
