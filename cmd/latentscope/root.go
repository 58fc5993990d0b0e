package main

import (
	"fmt"
	"os"

	"github.com/aretw0/latentscope/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "latentscope",
		Short: "Latentscope explores the latent space of a generative decoder",
		Long: `Latentscope loads a TF.js layers-model decoder and renders the image
for any point of its two-dimensional latent space, over HTTP, MCP or the terminal.`,
		SilenceUsage: true,
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./"+config.DefaultFile+" when present)")
	rootCmd.PersistentFlags().String("model", "", "Path or URL of the decoder model.json")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newServeCmd(),
		newDecodeCmd(),
		newInspectCmd(),
		newExploreCmd(),
		newMCPCmd(),
		newAboutCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies the flags
// the user set explicitly. A positional argument names the model when
// --model is absent.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("model") {
		cfg.Model, _ = cmd.Flags().GetString("model")
	} else if len(args) > 0 && cfg.Model == "" {
		cfg.Model = args[0]
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
