package latentscope

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aretw0/latentscope/internal/ledger"
	"github.com/aretw0/latentscope/internal/loader"
	"github.com/aretw0/latentscope/internal/logging"
	"github.com/aretw0/latentscope/internal/pipeline"
	"github.com/aretw0/latentscope/internal/runtime"
	"github.com/aretw0/latentscope/internal/sampler"
	"github.com/aretw0/latentscope/pkg/adapters/file"
	"github.com/aretw0/latentscope/pkg/adapters/remote"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
)

// Explorer is the high-level entry point for the latentscope library.
// It wraps the internal controller and provides a simplified API for views.
type Explorer struct {
	ctrl      *runtime.Controller
	modelPath string

	source  ports.ArtifactSource
	loader  ports.ModelLoader
	cache   ports.FrameCache
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	bounds  *domain.Bounds
	shape   domain.Shape
	initial *domain.LatentVector

	Name string
}

// Option defines a functional option for configuring the Explorer.
type Option func(*Explorer)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Explorer) {
		e.hooks = hooks
	}
}

// WithSource injects the artifact transport, bypassing the file/HTTP choice
// made from the model path.
func WithSource(src ports.ArtifactSource) Option {
	return func(e *Explorer) {
		e.source = src
	}
}

// WithLoader injects a custom ModelLoader. The source is then unused.
func WithLoader(l ports.ModelLoader) Option {
	return func(e *Explorer) {
		e.loader = l
	}
}

// WithCache enables the frame cache.
func WithCache(c ports.FrameCache) Option {
	return func(e *Explorer) {
		e.cache = c
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Explorer) {
		e.logger = logger
	}
}

// WithBounds clamps pointer coordinates into b before decoding.
func WithBounds(b domain.Bounds) Option {
	return func(e *Explorer) {
		e.bounds = &b
	}
}

// WithShape sets the grid used for blank frames and flat decoder outputs.
func WithShape(shape domain.Shape) Option {
	return func(e *Explorer) {
		e.shape = shape
	}
}

// WithInitialLatent overrides the first decoded latent (default (-2.5, -2.5)).
func WithInitialLatent(v domain.LatentVector) Option {
	return func(e *Explorer) {
		e.initial = &v
	}
}

// SourceFor picks the transport for a model location: HTTP(S) URLs are
// fetched remotely, anything else is read from disk.
func SourceFor(modelPath string) ports.ArtifactSource {
	lower := strings.ToLower(modelPath)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return remote.NewSource()
	}
	return file.NewSource()
}

// New initializes an Explorer for the decoder at modelPath (a model.json
// file or URL). Nothing is fetched until Start.
func New(modelPath string, opts ...Option) (*Explorer, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("modelPath is required")
	}
	e := &Explorer{modelPath: modelPath, shape: domain.DefaultShape}

	// Apply Options first to check if a loader is provided
	for _, opt := range opts {
		opt(e)
	}
	if !e.shape.Valid() {
		return nil, fmt.Errorf("invalid grid %s", e.shape)
	}

	e.Name = modelName(modelPath)

	// Ensure logger is initialized, enriched with the model name.
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	e.logger = e.logger.With("model", e.Name)

	if e.loader == nil {
		if e.source == nil {
			e.source = SourceFor(modelPath)
		}
		e.loader = loader.New(e.source, loader.WithLogger(e.logger), loader.WithShape(e.shape))
	}

	var samplerOpts []sampler.Option
	if e.bounds != nil {
		samplerOpts = append(samplerOpts, sampler.WithBounds(*e.bounds))
	}
	pipelineOpts := []pipeline.Option{
		pipeline.WithShape(e.shape),
		pipeline.WithLogger(e.logger),
		pipeline.WithLifecycleHooks(e.hooks),
	}
	if e.cache != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithCache(e.cache))
	}

	ctrlOpts := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithShape(e.shape),
		runtime.WithSampler(sampler.New(samplerOpts...)),
		runtime.WithPipeline(pipeline.New(pipelineOpts...)),
	}
	if e.initial != nil {
		ctrlOpts = append(ctrlOpts, runtime.WithInitialLatent(*e.initial))
	}
	e.ctrl = runtime.NewController(e.loader, modelPath, ctrlOpts...)

	return e, nil
}

// modelName is the directory holding model.json ("generatorjs"), or the
// file name when the model sits at the root.
func modelName(modelPath string) string {
	p := strings.ReplaceAll(modelPath, "\\", "/")
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.Index(p, "/"); j >= 0 {
			p = p[j:]
		}
	}
	dir := path.Base(path.Dir(p))
	if dir == "." || dir == "/" || dir == "" {
		return strings.TrimSuffix(path.Base(p), path.Ext(p))
	}
	return dir
}

// Start loads the model and decodes the initial frame. A load failure is
// final: the explorer stays in domain.StateFailed.
func (e *Explorer) Start(ctx context.Context) error {
	return e.ctrl.Start(ctx)
}

// Hover decodes the latent under the pointer. See runtime.Controller.Hover.
func (e *Explorer) Hover(ctx context.Context, cursor domain.Cursor) (bool, error) {
	return e.ctrl.Hover(ctx, cursor)
}

// Decode renders latent without changing the frame on screen. The caller
// must release the returned buffer.
func (e *Explorer) Decode(ctx context.Context, latent domain.LatentVector) (*domain.PixelBuffer, error) {
	return e.ctrl.Decode(ctx, latent)
}

// Frame pins the frame on screen; call done after drawing it.
func (e *Explorer) Frame() (*domain.PixelBuffer, func()) {
	return e.ctrl.Frame()
}

// Current returns the frame on screen without pinning it.
func (e *Explorer) Current() *domain.PixelBuffer {
	return e.ctrl.Current()
}

// Painted acknowledges a paint so superseded frames can be released.
func (e *Explorer) Painted() int {
	return e.ctrl.Painted()
}

// Latent is the displayed latent, rounded to 3 decimals.
func (e *Explorer) Latent() domain.LatentVector {
	return e.ctrl.Latent()
}

// Status returns the load state.
func (e *Explorer) Status() domain.Status {
	return e.ctrl.Status()
}

// Snapshot returns a serializable view of the explorer.
func (e *Explorer) Snapshot() domain.Snapshot {
	return e.ctrl.Snapshot()
}

// Info describes the loaded decoder.
func (e *Explorer) Info() (domain.ModelInfo, bool) {
	return e.ctrl.Info()
}

// Stats returns frame ledger counters.
func (e *Explorer) Stats() ledger.Stats {
	return e.ctrl.Stats()
}

// LiveTensors is the number of tensors not yet released.
func (e *Explorer) LiveTensors() int64 {
	return e.ctrl.LiveTensors()
}

// ModelPath is the location the decoder is loaded from.
func (e *Explorer) ModelPath() string {
	return e.modelPath
}

// Close releases every frame and the decoder.
func (e *Explorer) Close() error {
	return e.ctrl.Close()
}
