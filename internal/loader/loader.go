// Package loader fetches a TF.js layers-model artifact and compiles it into
// an executable decoder.
package loader

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/latentscope/internal/compiler"
	"github.com/aretw0/latentscope/internal/logging"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel shard downloads.
const DefaultConcurrency = 4

// Loader implements ports.ModelLoader on top of an ArtifactSource.
type Loader struct {
	source      ports.ArtifactSource
	parser      *compiler.Parser
	logger      *slog.Logger
	shape       domain.Shape
	concurrency int
}

// Option configures the Loader.
type Option func(*Loader)

// WithLogger sets the logger used for load progress.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithShape sets the grid used when the network ends in a flat vector.
func WithShape(shape domain.Shape) Option {
	return func(l *Loader) {
		l.shape = shape
	}
}

// WithConcurrency bounds how many shards are fetched at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// New creates a Loader reading from source.
func New(source ports.ArtifactSource, opts ...Option) *Loader {
	l := &Loader{
		source:      source,
		parser:      compiler.NewParser(),
		logger:      logging.NewNop(),
		shape:       domain.DefaultShape,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the descriptor at path, then every weight shard it lists, and
// compiles the decoder. Every failure is a *domain.LoadError: fetch failures
// are LoadNotFound unless the source reports unusable content, anything
// wrong with the content is LoadParse.
func (l *Loader) Load(ctx context.Context, path string) (ports.Decoder, error) {
	start := time.Now()

	descriptor, err := l.source.Fetch(ctx, path)
	if err != nil {
		return nil, domain.NewLoadError(fetchKind(err), path, err)
	}

	art, err := l.parser.Parse(descriptor)
	if err != nil {
		return nil, domain.NewLoadError(domain.LoadParse, path, err)
	}

	groups, err := l.fetchGroups(ctx, path, art.Manifest)
	if err != nil {
		return nil, err
	}

	net, err := compiler.Compile(art, groups, compiler.Options{Shape: l.shape})
	if err != nil {
		return nil, domain.NewLoadError(domain.LoadParse, path, err)
	}

	info := net.Info()
	l.logger.Debug("decoder loaded",
		"path", path,
		"model", info.Name,
		"layers", len(info.Layers),
		"params", info.Params(),
		"shards", len(art.ShardPaths()),
		"duration", time.Since(start))
	return net, nil
}

// fetchKind classifies a source failure.
func fetchKind(err error) domain.LoadErrorKind {
	if errors.Is(err, domain.ErrArtifactParse) {
		return domain.LoadParse
	}
	return domain.LoadNotFound
}

// fetchGroups downloads every shard concurrently and concatenates each
// group's shards in manifest order.
func (l *Loader) fetchGroups(ctx context.Context, base string, manifest []compiler.WeightGroup) ([][]byte, error) {
	type slot struct{ group, index int }

	parts := make([][][]byte, len(manifest))
	var jobs []slot
	for gi, g := range manifest {
		parts[gi] = make([][]byte, len(g.Paths))
		for pi := range g.Paths {
			jobs = append(jobs, slot{gi, pi})
		}
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.concurrency)
	for _, job := range jobs {
		shard := l.source.Resolve(base, manifest[job.group].Paths[job.index])
		eg.Go(func() error {
			data, err := l.source.Fetch(egCtx, shard)
			if err != nil {
				return domain.NewLoadError(fetchKind(err), shard, err)
			}
			parts[job.group][job.index] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	groups := make([][]byte, len(manifest))
	for gi, shards := range parts {
		var n int
		for _, s := range shards {
			n += len(s)
		}
		buf := make([]byte, 0, n)
		for _, s := range shards {
			buf = append(buf, s...)
		}
		groups[gi] = buf
	}
	return groups, nil
}

var _ ports.ModelLoader = (*Loader)(nil)
