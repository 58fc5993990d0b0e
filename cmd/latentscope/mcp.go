package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/aretw0/latentscope/internal/cli"
	"github.com/aretw0/latentscope/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd() *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp [model.json]",
		Short: "Run the Model Context Protocol (MCP) server",
		Long: `Starts the explorer as an MCP Server, so agents can hover, decode and inspect
the latent space as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			transport, _ := cmd.Flags().GetString("transport")
			port, _ := cmd.Flags().GetInt("port")

			logger := cli.NewLogger(cfg.SlogLevel())
			ctx := cli.NewSignalContext(context.Background())
			defer ctx.Cancel()

			explorer, err := cli.StartExplorer(ctx, cli.ExplorerOptions{Config: cfg, Logger: logger})
			if err != nil {
				return err
			}
			defer explorer.Close()

			embeddings, err := cli.LoadEmbeddings(ctx, cfg)
			if err != nil {
				return err
			}
			srv := mcp.NewServer(explorer, embeddings)

			switch transport {
			case "stdio":
				// Ensure logs don't corrupt JSON-RPC on Stdout
				log.SetOutput(cmd.ErrOrStderr())
				logger.Info("Starting latentscope MCP Server (Stdio)")
				return srv.ServeStdio()
			case "sse":
				logger.Info("Starting latentscope MCP Server (SSE)", "port", port)
				if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				logger.Info("MCP Server stopped gracefully")
				return nil
			default:
				return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
			}
		},
	}

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
	return mcpCmd
}
