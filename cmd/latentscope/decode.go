package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aretw0/latentscope/internal/cli"
	"github.com/aretw0/latentscope/internal/presentation/tui"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/render"
	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	decodeCmd := &cobra.Command{
		Use:   "decode [flags] [--] <x> <y>",
		Short: "Decode one latent coordinate",
		Long: `Loads the decoder, decodes the coordinate (x, y) and draws the image in the
terminal, or writes it as a grayscale PNG with --png.

Flags go before the coordinates. Put -- first when x is negative:

  latentscope decode --model models/generatorjs/model.json -- -2.5 -2.5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid x: %w", err)
			}
			y, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid y: %w", err)
			}

			cfg, err := loadConfig(cmd, nil)
			if err != nil {
				return err
			}
			ctx := context.Background()
			explorer, err := cli.StartExplorer(ctx, cli.ExplorerOptions{Config: cfg})
			if err != nil {
				return err
			}
			defer explorer.Close()

			buf, err := explorer.Decode(ctx, domain.LatentVector{X: x, Y: y})
			if err != nil {
				return err
			}
			defer buf.Release()

			out := cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("png"); path != "" {
				size, _ := cmd.Flags().GetInt("size")
				if size < 0 || size > render.MaxSize {
					return fmt.Errorf("size must be in 0..%d", render.MaxSize)
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := render.EncodePNG(f, buf, size); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				cli.PrintSystemMessage(out, "Wrote %s (%s at %s).", path, buf.Shape, buf.Latent.Rounded(3))
				return nil
			}

			preview := tui.NewPreview()
			text, err := preview.Render(buf)
			if err != nil {
				return err
			}
			fmt.Fprint(out, text)
			fmt.Fprintf(out, "latent %s\n", buf.Latent.Rounded(3))
			return nil
		},
	}

	// Everything after the first coordinate is positional, so y may be negative.
	decodeCmd.Flags().SetInterspersed(false)
	decodeCmd.Flags().String("png", "", "Write the frame to this PNG file instead of the terminal")
	decodeCmd.Flags().Int("size", render.DefaultSize, "PNG side in pixels (0 keeps the model grid)")
	return decodeCmd
}
