package cli

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/internal/presentation/tui"
)

// ExploreOptions configures the interactive terminal loop.
type ExploreOptions struct {
	ExplorerOptions
	Input    io.Reader
	Output   io.Writer
	Headless bool
}

// RunExplore loads the model and moves the pointer from stdin lines until
// EOF, "quit" or an interrupt, drawing each frame in the terminal.
func RunExplore(opts ExploreOptions) error {
	ctx := NewSignalContext(context.Background())
	defer ctx.Cancel()

	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	explorer, err := StartExplorer(ctx, opts.ExplorerOptions)
	if err != nil {
		return err
	}
	defer explorer.Close()

	if !opts.Headless {
		tui.PrintBanner(opts.Output)
	}

	r := latentscope.NewRunner()
	r.Input = NewInterruptibleReader(opts.Input, ctx.Done())
	r.Output = opts.Output
	r.Headless = opts.Headless
	if !opts.Headless {
		r.Renderer = tui.NewPreview().Render
	}

	err = r.Run(ctx, explorer)
	if !opts.Headless {
		stats := explorer.Stats()
		if ctx.Signal() != nil {
			PrintSystemMessage(opts.Output, "Interrupted at %s.", explorer.Latent())
		} else {
			PrintSystemMessage(opts.Output, "Finished at %s (%d frames released).", explorer.Latent(), stats.Disposed+stats.Discarded)
		}
	}
	return HandleExecutionError(err)
}
