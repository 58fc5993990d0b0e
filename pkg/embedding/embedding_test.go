package embedding_test

import (
	"context"
	"testing"

	"github.com/aretw0/latentscope/pkg/adapters/memory"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const encoded = `[[-1.5, 2.0, 3], [0.25, -0.5, 7], [2.0, 1.0, 3]]`

func TestParse(t *testing.T) {
	set, err := embedding.Parse([]byte(encoded))
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.Equal(t, domain.EmbeddingPoint{X: 0.25, Y: -0.5, Label: 7}, set.Points()[1])
	assert.Equal(t, []int{3, 7}, set.Labels())

	b, err := set.Bounds()
	require.NoError(t, err)
	assert.Equal(t, domain.Bounds{MinX: -1.5, MaxX: 2, MinY: -0.5, MaxY: 2}, b)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":         `{`,
		"short triple":     `[[1, 2]]`,
		"fractional label": `[[1, 2, 0.5]]`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := embedding.Parse([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestNearest(t *testing.T) {
	set, err := embedding.Parse([]byte(encoded))
	require.NoError(t, err)

	p, err := set.Nearest(1.9, 1.1)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Label)
	assert.Equal(t, 2.0, p.X)

	p, err = set.Nearest(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Label)

	_, err = embedding.New(nil).Nearest(0, 0)
	assert.ErrorIs(t, err, embedding.ErrEmpty)
	_, err = embedding.New(nil).Bounds()
	assert.ErrorIs(t, err, embedding.ErrEmpty)
}

func TestLoad(t *testing.T) {
	src := memory.NewSource(map[string][]byte{"data/encoded.json": []byte(encoded)})

	set, err := embedding.Load(context.Background(), src, "data/encoded.json")
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())

	_, err = embedding.Load(context.Background(), src, "data/missing.json")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
}
