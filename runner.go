package latentscope

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/latentscope/pkg/domain"
)

// Runner drives an Explorer from line-based input: each line "x y" moves the
// pointer, and the frame on screen is drawn after every accepted move.
// This allows for easy testing and integration with different frontends.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer FrameRenderer
}

// FrameRenderer draws a frame as text (e.g. a terminal preview).
type FrameRenderer func(*domain.PixelBuffer) (string, error)

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run reads coordinates until EOF, "exit" or "quit". The explorer must be
// started. Malformed lines are reported and skipped; decode errors stop the loop.
func (r *Runner) Run(ctx context.Context, explorer *Explorer) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	if !explorer.Status().Ready() {
		return fmt.Errorf("explorer is %s", explorer.Status().State)
	}
	lineReader := bufio.NewReader(r.Input)

	if !r.Headless {
		fmt.Fprintln(r.Output, "--- latentscope (enter \"x y\", or quit) ---")
	}
	if err := r.draw(explorer); err != nil {
		return err
	}

	for {
		if !r.Headless {
			fmt.Fprint(r.Output, "> ")
		}
		text, err := lineReader.ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("input error: %w", err)
		}
		line := strings.TrimSpace(text)

		switch {
		case line == "exit" || line == "quit":
			if !r.Headless {
				fmt.Fprintln(r.Output, "Bye!")
			}
			return nil
		case line != "":
			cursor, perr := parseCursor(line)
			if perr != nil {
				fmt.Fprintf(r.Output, "invalid coordinates: %v\n", perr)
			} else {
				accepted, herr := explorer.Hover(ctx, cursor)
				if herr != nil {
					return fmt.Errorf("decode error: %w", herr)
				}
				if accepted {
					if derr := r.draw(explorer); derr != nil {
						return derr
					}
				}
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

func (r *Runner) draw(explorer *Explorer) error {
	buf, done := explorer.Frame()
	if buf == nil {
		done()
		return nil
	}

	if r.Renderer != nil {
		out, err := r.Renderer(buf)
		if err != nil {
			done()
			return fmt.Errorf("render error: %w", err)
		}
		fmt.Fprint(r.Output, out)
	}
	fmt.Fprintf(r.Output, "latent %s\n", buf.Latent.Rounded(3))
	done()

	explorer.Painted()
	return nil
}

// parseCursor accepts "x y" or "x,y".
func parseCursor(line string) (domain.Cursor, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	if len(fields) != 2 {
		return domain.Cursor{}, fmt.Errorf("want two numbers, got %q", line)
	}
	x, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return domain.Cursor{}, err
	}
	y, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return domain.Cursor{}, err
	}
	return domain.Cursor{X: x, Y: y}, nil
}
