package domain

import (
	"fmt"
	"math"
)

// LatentDim is the dimensionality of the decoder input.
const LatentDim = 2

// DefaultLatent is the coordinate decoded when the model becomes ready,
// before any pointer interaction.
var DefaultLatent = LatentVector{X: -2.5, Y: -2.5}

// Cursor is a raw pointer coordinate reported by the scatterplot, already
// expressed in latent-space units.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LatentVector is the ordered pair fed to the decoder.
type LatentVector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Slice returns the vector as a decoder input row.
func (v LatentVector) Slice() []float32 {
	return []float32{float32(v.X), float32(v.Y)}
}

// Rounded returns the vector with both components rounded to the given
// number of decimals, as shown next to the image.
func (v LatentVector) Rounded(decimals int) LatentVector {
	return LatentVector{X: Round(v.X, decimals), Y: Round(v.Y, decimals)}
}

func (v LatentVector) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", v.X, v.Y)
}

// Round rounds x half away from zero to the given number of decimals.
func Round(x float64, decimals int) float64 {
	if decimals < 0 {
		decimals = 0
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// Bounds is an axis-aligned rectangle in latent space.
type Bounds struct {
	MinX float64 `json:"min_x" mapstructure:"min_x"`
	MaxX float64 `json:"max_x" mapstructure:"max_x"`
	MinY float64 `json:"min_y" mapstructure:"min_y"`
	MaxY float64 `json:"max_y" mapstructure:"max_y"`
}

// Valid reports whether the rectangle is non-empty.
func (b Bounds) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Contains reports whether v lies inside the rectangle (edges included).
func (b Bounds) Contains(v LatentVector) bool {
	return v.X >= b.MinX && v.X <= b.MaxX && v.Y >= b.MinY && v.Y <= b.MaxY
}

// Clamp projects v onto the rectangle.
func (b Bounds) Clamp(v LatentVector) LatentVector {
	return LatentVector{
		X: math.Min(math.Max(v.X, b.MinX), b.MaxX),
		Y: math.Min(math.Max(v.Y, b.MinY), b.MaxY),
	}
}

// EmbeddingPoint is one precomputed [x, y, label] triple of the scatterplot.
type EmbeddingPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label int     `json:"label"`
}

// Latent returns the point as a latent vector.
func (p EmbeddingPoint) Latent() LatentVector {
	return LatentVector{X: p.X, Y: p.Y}
}
