package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunFrameCacheContract runs a suite of tests to verify that a FrameCache implementation
// adheres to the defined interface contract.
func RunFrameCacheContract(t *testing.T, cache FrameCache) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")

	t.Run("Put and Get", func(t *testing.T) {
		key := prefix + "-frame"
		pixels := []float32{0, 12.5, 255, 3.25}

		require.NoError(t, cache.Put(ctx, key, pixels))

		got, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, pixels, got)
	})

	t.Run("Get Missing", func(t *testing.T) {
		got, ok, err := cache.Get(ctx, prefix+"-missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("Isolation", func(t *testing.T) {
		key := prefix + "-isolated"
		pixels := []float32{1, 2, 3}
		require.NoError(t, cache.Put(ctx, key, pixels))

		// Mutating the caller's slice must not change the stored frame.
		pixels[0] = 99
		got, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, float32(1), got[0])

		// Nor must mutating a returned slice.
		got[1] = 99
		again, _, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, float32(2), again[1])
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "-overwrite"
		for i := 0; i < 3; i++ {
			require.NoError(t, cache.Put(ctx, key, []float32{float32(i)}))
		}
		got, ok, err := cache.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []float32{2}, got, fmt.Sprintf("last write wins for %s", key))
	})
}
