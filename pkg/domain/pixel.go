package domain

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Display intensity range of a decoded pixel.
const (
	MinIntensity float32 = 0
	MaxIntensity float32 = 255
)

// DefaultShape is the grid produced by the reference decoder.
var DefaultShape = Shape{Rows: 28, Cols: 28}

// Shape is the fixed output grid of the decoder.
type Shape struct {
	Rows int `json:"rows" mapstructure:"rows"`
	Cols int `json:"cols" mapstructure:"cols"`
}

// Size returns the number of cells in the grid.
func (s Shape) Size() int {
	return s.Rows * s.Cols
}

// Valid reports whether both dimensions are positive.
func (s Shape) Valid() bool {
	return s.Rows > 0 && s.Cols > 0
}

func (s Shape) String() string {
	return fmt.Sprintf("%dx%d", s.Rows, s.Cols)
}

// PixelBuffer is a decoded image: a row-major grid of intensities in
// [MinIntensity, MaxIntensity].
//
// The backing memory may be recycled once the buffer is released, so every
// read goes through Pixels or At, which fail with ErrBufferReleased after
// Release. Release succeeds exactly once.
type PixelBuffer struct {
	// Shape is the grid dimensions.
	Shape Shape

	// Seq is the decode request that produced the buffer. Zero for blank buffers.
	Seq uint64

	// Latent is the vector the buffer was decoded from.
	Latent LatentVector

	data     []float32
	release  func()
	released atomic.Bool
}

// NewPixelBuffer wraps data as a buffer of the given shape. release, if not
// nil, is called once when the buffer is released.
func NewPixelBuffer(shape Shape, data []float32, release func()) *PixelBuffer {
	return &PixelBuffer{
		Shape:   shape,
		data:    data,
		release: release,
	}
}

// Blank returns the all-zero buffer of the given shape.
func Blank(shape Shape) *PixelBuffer {
	return NewPixelBuffer(shape, make([]float32, shape.Size()), nil)
}

// Pixels returns the backing slice. The slice must not be retained after
// the buffer is released.
func (b *PixelBuffer) Pixels() ([]float32, error) {
	if b.released.Load() {
		return nil, ErrBufferReleased
	}
	return b.data, nil
}

// At returns the intensity at row r, column c.
func (b *PixelBuffer) At(r, c int) (float32, error) {
	if b.released.Load() {
		return 0, ErrBufferReleased
	}
	if r < 0 || r >= b.Shape.Rows || c < 0 || c >= b.Shape.Cols {
		return 0, fmt.Errorf("pixel (%d,%d) outside %s grid", r, c, b.Shape)
	}
	return b.data[r*b.Shape.Cols+c], nil
}

// Bytes returns a copy of the grid quantised to 8-bit gray levels.
func (b *PixelBuffer) Bytes() ([]byte, error) {
	px, err := b.Pixels()
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(px))
	for i, v := range px {
		out[i] = uint8(math.Round(float64(ClampIntensity(v))))
	}
	return out, nil
}

// Released reports whether the buffer has been released.
func (b *PixelBuffer) Released() bool {
	return b.released.Load()
}

// Release hands the backing memory back to its allocator. A second call
// returns ErrBufferReleased and does nothing.
func (b *PixelBuffer) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return ErrBufferReleased
	}
	if b.release != nil {
		b.release()
	}
	return nil
}

// Equal reports whether both buffers hold bit-identical pixels of the same shape.
func (b *PixelBuffer) Equal(other *PixelBuffer) bool {
	if b == nil || other == nil {
		return b == other
	}
	if b.Shape != other.Shape {
		return false
	}
	x, err := b.Pixels()
	if err != nil {
		return false
	}
	y, err := other.Pixels()
	if err != nil {
		return false
	}
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if math.Float32bits(x[i]) != math.Float32bits(y[i]) {
			return false
		}
	}
	return true
}

// ClampIntensity limits v to the display range. NaN maps to MinIntensity.
func ClampIntensity(v float32) float32 {
	switch {
	case v != v:
		return MinIntensity
	case v < MinIntensity:
		return MinIntensity
	case v > MaxIntensity:
		return MaxIntensity
	}
	return v
}
