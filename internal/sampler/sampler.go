// Package sampler maps pointer coordinates onto latent vectors.
package sampler

import "github.com/aretw0/latentscope/pkg/domain"

// Sampler converts a cursor into the vector fed to the decoder.
// It is pure: the same cursor always yields the same vector.
type Sampler struct {
	bounds *domain.Bounds
}

// Option configures the Sampler.
type Option func(*Sampler)

// WithBounds clamps every sample into b. Invalid bounds are ignored.
func WithBounds(b domain.Bounds) Option {
	return func(s *Sampler) {
		if b.Valid() {
			s.bounds = &b
		}
	}
}

// New creates an identity sampler unless WithBounds is given.
func New(opts ...Option) *Sampler {
	s := &Sampler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample maps c to a latent vector. Out-of-range coordinates pass through
// unchanged unless the sampler was built with bounds.
func (s *Sampler) Sample(c domain.Cursor) domain.LatentVector {
	v := domain.LatentVector{X: c.X, Y: c.Y}
	if s.bounds != nil {
		return s.bounds.Clamp(v)
	}
	return v
}

// Bounds returns the clamp rectangle, if any.
func (s *Sampler) Bounds() (domain.Bounds, bool) {
	if s.bounds == nil {
		return domain.Bounds{}, false
	}
	return *s.bounds, true
}
