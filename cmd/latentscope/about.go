package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/internal/presentation/tui"
	"github.com/spf13/cobra"
)

const aboutText = `# latentscope %s

An explorer for the latent space of a generative **decoder**.

A variational autoencoder trained on handwritten digits compresses every image
to a point in a two-dimensional plane. The decoder maps any point of that plane
back to a 28x28 image. Moving the pointer over the scatterplot of encoded
digits shows, frame by frame, what the decoder "imagines" between them.

## Commands

| Command   | Purpose                                        |
|-----------|------------------------------------------------|
| serve     | HTTP API for the scatterplot and canvas views  |
| explore   | move through the plane from the terminal       |
| decode    | render one coordinate (terminal or PNG)        |
| inspect   | list the decoder layers, or draw them (Mermaid)|
| mcp       | expose the explorer to agents over MCP         |

Frames that leave the screen are released as soon as their successor has been
painted, so memory stays flat however long the pointer moves.
`

func newAboutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Describe latentscope",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := tui.NewRenderer()(fmt.Sprintf(aboutText, strings.TrimSpace(latentscope.Version)))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
