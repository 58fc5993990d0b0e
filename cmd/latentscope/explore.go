package main

import (
	"github.com/aretw0/latentscope/internal/cli"
	"github.com/spf13/cobra"
)

func newExploreCmd() *cobra.Command {
	exploreCmd := &cobra.Command{
		Use:   "explore [model.json]",
		Short: "Move through the latent space from the terminal",
		Long: `Loads the decoder and reads "x y" lines from stdin. Each line moves the pointer
and draws the decoded frame. Type quit (or Ctrl+C) to leave.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			headless, _ := cmd.Flags().GetBool("headless")
			return cli.RunExplore(cli.ExploreOptions{
				ExplorerOptions: cli.ExplorerOptions{Config: cfg},
				Input:           cmd.InOrStdin(),
				Output:          cmd.OutOrStdout(),
				Headless:        headless,
			})
		},
	}

	exploreCmd.Flags().Bool("headless", false, "Plain output: no banner, prompt or preview")
	return exploreCmd
}
