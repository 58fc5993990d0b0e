package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/internal/config"
	"github.com/aretw0/latentscope/pkg/adapters/memory"
	"github.com/aretw0/latentscope/pkg/adapters/redis"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/embedding"
	"github.com/aretw0/latentscope/pkg/observability"
	"github.com/aretw0/latentscope/pkg/ports"
)

// ExplorerOptions are the inputs every command shares.
type ExplorerOptions struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	// Source overrides the transport picked from the model path.
	Source ports.ArtifactSource
}

// NewExplorer initializes an explorer with standard CLI conventions: log
// hooks always, metrics hooks when a registry is given, and the frame cache
// the config asks for.
func NewExplorer(opts ExplorerOptions) (*latentscope.Explorer, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(cfg.SlogLevel())
	}

	// 1. Logger & Hooks
	hooks := []domain.LifecycleHooks{observability.LogHooks(logger)}
	if opts.Metrics != nil {
		hooks = append(hooks, opts.Metrics.Hooks())
	}
	exOpts := []latentscope.Option{
		latentscope.WithLogger(logger),
		latentscope.WithLifecycleHooks(domain.ChainHooks(hooks...)),
		latentscope.WithShape(cfg.Shape()),
		latentscope.WithInitialLatent(cfg.InitialLatent()),
	}

	// 2. Frame cache: shared Redis wins over the in-process one.
	if cache := newCache(cfg, logger); cache != nil {
		exOpts = append(exOpts, latentscope.WithCache(cache))
	}
	if cfg.Clamp {
		exOpts = append(exOpts, latentscope.WithBounds(cfg.Bounds))
	}
	if opts.Source != nil {
		exOpts = append(exOpts, latentscope.WithSource(opts.Source))
	}

	// 3. Initialize
	explorer, err := latentscope.New(cfg.Model, exOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing explorer: %w", err)
	}
	return explorer, nil
}

func newCache(cfg *config.Config, logger *slog.Logger) ports.FrameCache {
	switch {
	case cfg.Redis.Addr != "":
		logger.Debug("frame cache: redis", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
		return redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
	case cfg.CacheSize > 0:
		return memory.NewCache(cfg.CacheSize)
	}
	return nil
}

// LoadEmbeddings reads the scatterplot dataset named in the config. It
// returns nil when none is configured.
func LoadEmbeddings(ctx context.Context, cfg *config.Config) (*embedding.Set, error) {
	if cfg.Embeddings == "" {
		return nil, nil
	}
	set, err := embedding.Load(ctx, latentscope.SourceFor(cfg.Embeddings), cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("error loading embeddings: %w", err)
	}
	return set, nil
}

// StartExplorer builds and starts an explorer. A load failure closes it.
func StartExplorer(ctx context.Context, opts ExplorerOptions) (*latentscope.Explorer, error) {
	explorer, err := NewExplorer(opts)
	if err != nil {
		return nil, err
	}
	if err := explorer.Start(ctx); err != nil {
		_ = explorer.Close()
		return nil, fmt.Errorf("error loading model %s: %w", opts.Config.Model, err)
	}
	return explorer, nil
}
