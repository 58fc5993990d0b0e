// Package render turns pixel buffers into images for the canvas collaborator.
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/aretw0/latentscope/pkg/domain"
	"golang.org/x/image/draw"
)

// DefaultSize is the side of the displayed canvas, in pixels.
const DefaultSize = 500

// MaxSize caps upscaling requests.
const MaxSize = 4096

// Gray copies buf into an 8-bit grayscale image at native resolution.
func Gray(buf *domain.PixelBuffer) (*image.Gray, error) {
	levels, err := buf.Bytes()
	if err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, buf.Shape.Cols, buf.Shape.Rows))
	for r := 0; r < buf.Shape.Rows; r++ {
		copy(img.Pix[r*img.Stride:], levels[r*buf.Shape.Cols:(r+1)*buf.Shape.Cols])
	}
	return img, nil
}

// Scale upscales src so its longer side is size pixels, with nearest
// neighbour sampling so every grid cell stays a crisp square.
func Scale(src image.Image, size int) (*image.Gray, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("size %d outside 1..%d", size, MaxSize)
	}
	b := src.Bounds()
	w, h := size, size
	switch {
	case b.Dx() > b.Dy():
		h = max(1, size*b.Dy()/b.Dx())
	case b.Dy() > b.Dx():
		w = max(1, size*b.Dx()/b.Dy())
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

// EncodePNG writes buf as a grayscale PNG whose longer side is size pixels.
// A size of 0 keeps the native grid resolution.
func EncodePNG(w io.Writer, buf *domain.PixelBuffer, size int) error {
	img, err := Gray(buf)
	if err != nil {
		return err
	}
	var out image.Image = img
	if size > 0 {
		scaled, err := Scale(img, size)
		if err != nil {
			return err
		}
		out = scaled
	}
	return png.Encode(w, out)
}
