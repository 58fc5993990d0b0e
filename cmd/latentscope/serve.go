package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/latentscope/internal/cli"
	httpAdapter "github.com/aretw0/latentscope/pkg/adapters/http"
	"github.com/aretw0/latentscope/pkg/observability"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve [model.json]",
		Short: "Start the HTTP server",
		Long: `Loads the decoder and serves the explorer over HTTP: the scatterplot dataset,
hover updates, the frame on screen (JSON or PNG), an SSE stream of frame updates
and Prometheus metrics.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen, _ = cmd.Flags().GetString("listen")
			}
			if cmd.Flags().Changed("embeddings") {
				cfg.Embeddings, _ = cmd.Flags().GetString("embeddings")
			}
			if noMetrics, _ := cmd.Flags().GetBool("no-metrics"); noMetrics {
				cfg.Metrics = false
			}

			logger := cli.NewLogger(cfg.SlogLevel())
			ctx := cli.NewSignalContext(context.Background())
			defer ctx.Cancel()

			var metrics *observability.Metrics
			serverOpts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
			if cfg.Metrics {
				metrics = observability.NewMetrics()
				serverOpts = append(serverOpts, httpAdapter.WithMetrics(metrics.Handler()))
			}

			embeddings, err := cli.LoadEmbeddings(ctx, cfg)
			if err != nil {
				return err
			}
			if embeddings != nil {
				serverOpts = append(serverOpts, httpAdapter.WithEmbeddings(embeddings))
			}

			explorer, err := cli.NewExplorer(cli.ExplorerOptions{Config: cfg, Logger: logger, Metrics: metrics})
			if err != nil {
				return err
			}
			defer explorer.Close()

			srv := &http.Server{
				Addr:    cfg.Listen,
				Handler: httpAdapter.NewHandler(explorer, serverOpts...),
			}

			// Channel to listen for errors coming from the listener.
			serverErrors := make(chan error, 1)
			go func() {
				logger.Info("Starting latentscope server", "addr", srv.Addr, "model", cfg.Model)
				serverErrors <- srv.ListenAndServe()
			}()

			// The server answers while the model loads; a failed load
			// leaves it serving the Failed state.
			if err := explorer.Start(ctx); err != nil {
				logger.Error("model load failed", "err", err)
			}

			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				logger.Info("Start shutdown", "signal", ctx.Signal())

				// Give outstanding requests a deadline for completion.
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
					if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
				}
				logger.Info("latentscope server stopped gracefully")
			}
			return nil
		},
	}

	serveCmd.Flags().StringP("listen", "l", ":8080", "Address to listen on")
	serveCmd.Flags().String("embeddings", "", "Path or URL of the encoded.json scatterplot dataset")
	serveCmd.Flags().Bool("no-metrics", false, "Do not expose /metrics")
	return serveCmd
}
