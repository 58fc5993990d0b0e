package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/latentscope/internal/loader"
	"github.com/aretw0/latentscope/internal/pipeline"
	"github.com/aretw0/latentscope/internal/testutils"
	"github.com/aretw0/latentscope/pkg/adapters/memory"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
	"github.com/aretw0/latentscope/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const modelPath = "models/generatorjs/model.json"

func loadDecoder(t *testing.T) ports.Decoder {
	t.Helper()
	fx := testutils.BuildDecoder(t, testutils.DefaultDecoder())
	dec, err := loader.New(fx.Source(modelPath)).Load(context.Background(), modelPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dec.Close() })
	return dec
}

func TestPipeline_Decode(t *testing.T) {
	dec := loadDecoder(t)
	p := pipeline.New()
	ctx := context.Background()

	buf, err := p.Decode(ctx, dec, domain.LatentVector{X: 0.5, Y: -1})
	require.NoError(t, err)

	assert.Equal(t, domain.DefaultShape, buf.Shape)
	assert.Equal(t, domain.LatentVector{X: 0.5, Y: -1}, buf.Latent)

	px, err := buf.Pixels()
	require.NoError(t, err)
	require.Len(t, px, 28*28)
	for i, v := range px {
		require.GreaterOrEqual(t, v, domain.MinIntensity, "pixel %d", i)
		require.LessOrEqual(t, v, domain.MaxIntensity, "pixel %d", i)
	}

	// Only the output survives the pass.
	assert.Equal(t, int64(1), p.Allocator().Live())
	require.NoError(t, buf.Release())
	assert.Equal(t, int64(0), p.Allocator().Live())
}

func TestPipeline_Deterministic(t *testing.T) {
	dec := loadDecoder(t)
	p := pipeline.New()
	ctx := context.Background()
	latent := domain.LatentVector{X: 2.5, Y: 2.5}

	a, err := p.Decode(ctx, dec, latent)
	require.NoError(t, err)
	b, err := p.Decode(ctx, dec, latent)
	require.NoError(t, err)

	assert.True(t, a.Equal(b), "same latent must decode bit-identically")

	other, err := p.Decode(ctx, dec, domain.LatentVector{X: -2.5, Y: -2.5})
	require.NoError(t, err)
	assert.False(t, a.Equal(other))

	for _, buf := range []*domain.PixelBuffer{a, b, other} {
		require.NoError(t, buf.Release())
	}
	assert.Equal(t, int64(0), p.Allocator().Live())
}

func TestPipeline_NoModel(t *testing.T) {
	shape := domain.Shape{Rows: 4, Cols: 7}
	p := pipeline.New(pipeline.WithShape(shape))

	buf, err := p.Decode(context.Background(), nil, domain.LatentVector{X: 1, Y: 1})
	require.NoError(t, err)
	assert.Equal(t, shape, buf.Shape)
	assert.True(t, buf.Equal(domain.Blank(shape)))
	assert.Equal(t, int64(0), p.Allocator().Live())
}

func TestPipeline_Cache(t *testing.T) {
	dec := loadDecoder(t)
	cache := memory.NewCache(0)

	var sources []domain.DecodeSource
	p := pipeline.New(
		pipeline.WithCache(cache),
		pipeline.WithLifecycleHooks(domain.LifecycleHooks{
			OnDecode: func(_ context.Context, e *domain.DecodeEvent) {
				sources = append(sources, e.Source)
			},
		}),
	)
	ctx := context.Background()
	latent := domain.LatentVector{X: 0.1, Y: 0.2}

	first, err := p.Decode(ctx, dec, latent)
	require.NoError(t, err)
	second, err := p.Decode(ctx, dec, latent)
	require.NoError(t, err)

	assert.Equal(t, []domain.DecodeSource{domain.SourceModel, domain.SourceCache}, sources)
	assert.Equal(t, 1, cache.Len())
	assert.True(t, first.Equal(second))

	// A cache hit is still a fresh buffer.
	require.NoError(t, first.Release())
	_, err = second.Pixels()
	assert.NoError(t, err)
	require.NoError(t, second.Release())
	assert.Equal(t, int64(0), p.Allocator().Live())
}

type MockDecoder struct {
	mock.Mock
}

func (m *MockDecoder) Info() domain.ModelInfo {
	return domain.ModelInfo{Name: "mock", Digest: "mock"}
}

func (m *MockDecoder) OutputShape() domain.Shape {
	return domain.Shape{Rows: 2, Cols: 2}
}

func (m *MockDecoder) Predict(ctx context.Context, alloc *tensor.Allocator, input *tensor.Tensor) (*tensor.Tensor, error) {
	args := m.Called(ctx, alloc, input)
	if fn, ok := args.Get(0).(func(*tensor.Allocator) *tensor.Tensor); ok {
		return fn(alloc), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDecoder) Close() error { return nil }

func TestPipeline_BackendFault(t *testing.T) {
	boom := errors.New("backend fault")
	dec := new(MockDecoder)
	dec.On("Predict", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

	p := pipeline.New()
	_, err := p.Decode(context.Background(), dec, domain.LatentVector{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), p.Allocator().Live(), "input must be released on failure")
	dec.AssertExpectations(t)
}

func TestPipeline_ClampAndShapeMismatch(t *testing.T) {
	t.Run("Out of range values are clamped", func(t *testing.T) {
		dec := new(MockDecoder)
		dec.On("Predict", mock.Anything, mock.Anything, mock.Anything).Return(func(a *tensor.Allocator) *tensor.Tensor {
			out, _ := a.FromSlice([]float32{-1, 0.5, 2, 1}, 1, 4)
			return out
		}, nil)

		p := pipeline.New()
		buf, err := p.Decode(context.Background(), dec, domain.LatentVector{})
		require.NoError(t, err)
		px, err := buf.Pixels()
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 127.5, 255, 255}, px)
		require.NoError(t, buf.Release())
		assert.Equal(t, int64(0), p.Allocator().Live())
	})

	t.Run("Wrong output size", func(t *testing.T) {
		dec := new(MockDecoder)
		dec.On("Predict", mock.Anything, mock.Anything, mock.Anything).Return(func(a *tensor.Allocator) *tensor.Tensor {
			return a.New(1, 3)
		}, nil)

		p := pipeline.New()
		_, err := p.Decode(context.Background(), dec, domain.LatentVector{})
		assert.ErrorIs(t, err, domain.ErrShapeMismatch)
		assert.Equal(t, int64(0), p.Allocator().Live())
	})
}
