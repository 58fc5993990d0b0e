// Package pipeline turns a latent vector into a displayable pixel buffer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aretw0/latentscope/internal/logging"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
	"github.com/aretw0/latentscope/pkg/tensor"
)

// Pipeline runs one forward pass per Decode and owns the allocator every
// tensor of the pass comes from.
type Pipeline struct {
	alloc  *tensor.Allocator
	shape  domain.Shape
	cache  ports.FrameCache
	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithAllocator shares an allocator (useful to inspect live counts).
func WithAllocator(a *tensor.Allocator) Option {
	return func(p *Pipeline) {
		if a != nil {
			p.alloc = a
		}
	}
}

// WithShape sets the grid of the blank buffer returned before a model is ready.
func WithShape(shape domain.Shape) Option {
	return func(p *Pipeline) {
		if shape.Valid() {
			p.shape = shape
		}
	}
}

// WithCache short-circuits inference for latents already decoded.
func WithCache(c ports.FrameCache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLifecycleHooks registers the OnDecode callback.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(p *Pipeline) {
		p.hooks = hooks
	}
}

// New creates a pipeline with a private allocator and the default grid.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		alloc:  tensor.NewAllocator(),
		shape:  domain.DefaultShape,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Allocator exposes the tensor allocator.
func (p *Pipeline) Allocator() *tensor.Allocator {
	return p.alloc
}

// Shape is the grid used for blank buffers.
func (p *Pipeline) Shape() domain.Shape {
	return p.shape
}

// Decode produces the image for latent. With a nil model it returns the
// all-zero buffer and no error. Only the returned buffer escapes: the input
// and prediction tensors are released before return, on every path.
func (p *Pipeline) Decode(ctx context.Context, model ports.Decoder, latent domain.LatentVector) (*domain.PixelBuffer, error) {
	start := time.Now()

	if model == nil {
		buf := domain.Blank(p.shape)
		buf.Latent = latent
		p.emit(ctx, latent, domain.SourceBlank, start)
		return buf, nil
	}

	shape := model.OutputShape()
	key := cacheKey(model.Info().Digest, latent)

	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			p.logger.Warn("frame cache read failed", "key", key, "err", err)
		}
		if ok && len(cached) == shape.Size() {
			out, err := p.alloc.FromSlice(cached, shape.Rows, shape.Cols)
			if err != nil {
				return nil, err
			}
			p.emit(ctx, latent, domain.SourceCache, start)
			return p.wrap(out, shape, latent), nil
		}
	}

	input, err := p.alloc.FromSlice(latent.Slice(), 1, domain.LatentDim)
	if err != nil {
		return nil, err
	}
	raw, err := model.Predict(ctx, p.alloc, input)
	_ = input.Release()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", latent, err)
	}
	defer raw.Release()

	if raw.Len() != shape.Size() {
		return nil, fmt.Errorf("decode %s: %w: %d values for %s grid", latent, domain.ErrShapeMismatch, raw.Len(), shape)
	}

	out := p.alloc.New(shape.Rows, shape.Cols)
	dst := out.Data()
	for i, v := range raw.Data() {
		dst[i] = domain.ClampIntensity(v * domain.MaxIntensity)
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, key, dst); err != nil {
			p.logger.Warn("frame cache write failed", "key", key, "err", err)
		}
	}

	p.emit(ctx, latent, domain.SourceModel, start)
	return p.wrap(out, shape, latent), nil
}

func (p *Pipeline) wrap(out *tensor.Tensor, shape domain.Shape, latent domain.LatentVector) *domain.PixelBuffer {
	buf := domain.NewPixelBuffer(shape, out.Data(), func() { _ = out.Release() })
	buf.Latent = latent
	return buf
}

func (p *Pipeline) emit(ctx context.Context, latent domain.LatentVector, src domain.DecodeSource, start time.Time) {
	d := time.Since(start)
	p.logger.Debug("decoded", "latent", latent, "source", src, "duration", d)
	if p.hooks.OnDecode != nil {
		p.hooks.OnDecode(ctx, &domain.DecodeEvent{
			EventBase: domain.NewEventBase(domain.EventDecode),
			Latent:    latent,
			Source:    src,
			Duration:  d,
		})
	}
}

// cacheKey identifies a frame by model digest and the exact float bits of
// the latent, so only bit-identical inputs share a frame.
func cacheKey(digest string, v domain.LatentVector) string {
	return fmt.Sprintf("%s:%016x:%016x", digest, math.Float64bits(v.X), math.Float64bits(v.Y))
}
