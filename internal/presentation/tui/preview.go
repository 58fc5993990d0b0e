package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Width is the terminal width, or fallback when stdout is not a terminal.
func Width(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return fallback
}

// Preview draws a frame with one character cell per two pixel rows: the
// upper pixel is the foreground of "▀", the lower one its background.
// Wide frames are sampled down to fit width columns.
type Preview struct {
	Profile termenv.Profile
	Width   int
}

// NewPreview detects the colour profile and width of stdout.
func NewPreview() *Preview {
	return &Preview{Profile: termenv.ColorProfile(), Width: Width(80)}
}

// Render returns the frame as terminal text. It matches the Runner's
// FrameRenderer signature.
func (p *Preview) Render(buf *domain.PixelBuffer) (string, error) {
	px, err := buf.Pixels()
	if err != nil {
		return "", err
	}
	rows, cols := buf.Shape.Rows, buf.Shape.Cols

	step := 1
	if p.Width > 0 && cols > p.Width {
		step = (cols + p.Width - 1) / p.Width
	}

	var sb strings.Builder
	for r := 0; r < rows; r += 2 * step {
		for c := 0; c < cols; c += step {
			top := px[r*cols+c]
			bottom := float32(0)
			if r+step < rows {
				bottom = px[(r+step)*cols+c]
			}
			if p.Profile == termenv.Ascii {
				sb.WriteString("▀")
				continue
			}
			sb.WriteString(p.Profile.String("▀").
				Foreground(p.Profile.Color(gray(top))).
				Background(p.Profile.Color(gray(bottom))).
				String())
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func gray(v float32) string {
	g := uint8(domain.ClampIntensity(v))
	return fmt.Sprintf("#%02x%02x%02x", g, g, g)
}
