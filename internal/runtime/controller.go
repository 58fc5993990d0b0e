package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/latentscope/internal/ledger"
	"github.com/aretw0/latentscope/internal/logging"
	"github.com/aretw0/latentscope/internal/pipeline"
	"github.com/aretw0/latentscope/internal/sampler"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
)

// LatentDecimals is the precision latents are reported with.
const LatentDecimals = 3

// Controller is the explorer state machine.
type Controller struct {
	loader    ports.ModelLoader
	modelPath string

	sampler  *sampler.Sampler
	pipeline *pipeline.Pipeline
	ledger   *ledger.Ledger

	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	initial domain.LatentVector
	shape   domain.Shape

	// custom components are kept as given; defaults are built in NewController
	customPipeline bool
	customLedger   bool

	mu      sync.Mutex
	status  domain.Status
	model   ports.Decoder
	seq     uint64
	started bool
	closed  bool
}

// Option configures the Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks. They are passed on to the
// default pipeline and ledger.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Controller) {
		c.hooks = hooks
	}
}

// WithSampler replaces the identity sampler.
func WithSampler(s *sampler.Sampler) Option {
	return func(c *Controller) {
		if s != nil {
			c.sampler = s
		}
	}
}

// WithPipeline replaces the default pipeline. Its hooks are left untouched.
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(c *Controller) {
		if p != nil {
			c.pipeline = p
			c.customPipeline = true
		}
	}
}

// WithLedger replaces the default ledger. Its hooks are left untouched.
func WithLedger(l *ledger.Ledger) Option {
	return func(c *Controller) {
		if l != nil {
			c.ledger = l
			c.customLedger = true
		}
	}
}

// WithInitialLatent sets the vector decoded as soon as the model is ready.
func WithInitialLatent(v domain.LatentVector) Option {
	return func(c *Controller) {
		c.initial = v
	}
}

// WithShape sets the grid of blank frames returned before the model is ready.
func WithShape(shape domain.Shape) Option {
	return func(c *Controller) {
		if shape.Valid() {
			c.shape = shape
		}
	}
}

// NewController creates a controller in StateUninitialized. Nothing is
// fetched until Start.
func NewController(loader ports.ModelLoader, modelPath string, opts ...Option) *Controller {
	c := &Controller{
		loader:    loader,
		modelPath: modelPath,
		sampler:   sampler.New(),
		logger:    logging.NewNop(),
		initial:   domain.DefaultLatent,
		shape:     domain.DefaultShape,
		status:    domain.Status{State: domain.StateUninitialized},
	}
	for _, opt := range opts {
		opt(c)
	}

	if !c.customPipeline {
		c.pipeline = pipeline.New(
			pipeline.WithShape(c.shape),
			pipeline.WithLogger(c.logger),
			pipeline.WithLifecycleHooks(c.hooks),
		)
	}
	if !c.customLedger {
		c.ledger = ledger.New(
			ledger.WithLogger(c.logger),
			ledger.WithLifecycleHooks(c.hooks),
		)
	}
	return c
}

// Start loads the model. It moves to StateLoading exactly once; a second call
// returns domain.ErrAlreadyStarted. On success the controller is Ready and the
// initial latent has been decoded. On failure it stays in StateFailed for
// good and the load error is returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	c.started = true
	c.transitionLocked(ctx, domain.Status{State: domain.StateLoading})
	c.mu.Unlock()

	c.logger.Info("loading decoder", "path", c.modelPath)
	dec, err := c.loader.Load(ctx, c.modelPath)

	c.mu.Lock()
	if err != nil {
		kind, ok := domain.LoadErrorKindOf(err)
		if !ok {
			kind = domain.LoadNotFound
		}
		c.transitionLocked(ctx, domain.Status{State: domain.StateFailed, Reason: kind, Err: err})
		c.mu.Unlock()
		c.logger.Error("failed to load decoder", "path", c.modelPath, "reason", kind, "err", err)
		return err
	}
	if c.closed {
		c.mu.Unlock()
		_ = dec.Close()
		return nil
	}
	c.model = dec
	c.transitionLocked(ctx, domain.Status{State: domain.StateReady})
	c.mu.Unlock()

	info := dec.Info()
	c.logger.Info("decoder ready", "model", info.Name, "layers", len(info.Layers), "grid", info.OutputShape)

	_, err = c.decodeAndOffer(ctx, c.initial)
	return err
}

// transitionLocked moves to next if the lifecycle allows it. c.mu must be held.
func (c *Controller) transitionLocked(ctx context.Context, next domain.Status) {
	prev := c.status.State
	if !prev.CanTransition(next.State) {
		c.logger.Warn("ignoring invalid transition", "from", prev, "to", next.State)
		return
	}
	c.status = next
	if c.hooks.OnStateChange != nil {
		c.hooks.OnStateChange(ctx, &domain.StateEvent{
			EventBase: domain.NewEventBase(domain.EventStateChange),
			From:      prev,
			To:        next.State,
			Err:       next.Err,
		})
	}
}

// Hover decodes the latent under the pointer. It is inert (false, nil) unless
// the controller is Ready. It reports whether the decoded frame became
// current; false with a nil error means a newer request already won.
// Backend faults are returned as is.
func (c *Controller) Hover(ctx context.Context, cursor domain.Cursor) (bool, error) {
	c.mu.Lock()
	ready := c.status.Ready() && !c.closed
	c.mu.Unlock()
	if !ready {
		return false, nil
	}
	return c.decodeAndOffer(ctx, c.sampler.Sample(cursor))
}

func (c *Controller) decodeAndOffer(ctx context.Context, latent domain.LatentVector) (bool, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	model := c.model
	c.mu.Unlock()

	buf, err := c.pipeline.Decode(ctx, model, latent)
	if err != nil {
		// Close released the model under an in-flight decode.
		if c.isClosed() {
			c.logger.Debug("decode abandoned after close", "seq", seq, "err", err)
			return false, nil
		}
		c.logger.Error("decode failed", "seq", seq, "latent", latent, "err", err)
		return false, err
	}
	buf.Seq = seq
	return c.ledger.Offer(buf), nil
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Decode renders latent without touching the displayed frame. Before the
// model is ready it returns the blank frame. The caller owns the buffer and
// must release it.
func (c *Controller) Decode(ctx context.Context, latent domain.LatentVector) (*domain.PixelBuffer, error) {
	c.mu.Lock()
	model := c.model
	if c.closed {
		model = nil
	}
	c.mu.Unlock()
	return c.pipeline.Decode(ctx, model, latent)
}

// Current returns the frame on screen, or nil before the first decode.
func (c *Controller) Current() *domain.PixelBuffer {
	return c.ledger.Current()
}

// Frame pins the frame on screen for reading. done must be called once the
// frame has been drawn; buf is nil before the first decode.
func (c *Controller) Frame() (buf *domain.PixelBuffer, done func()) {
	return c.ledger.Acquire()
}

// Painted acknowledges that the view presented the current frame, releasing
// the frames it replaced. It returns how many were released.
func (c *Controller) Painted() int {
	return c.ledger.Painted()
}

// Latent is the vector of the frame on screen, rounded for display. Before
// the first frame it is the initial latent.
func (c *Controller) Latent() domain.LatentVector {
	if buf := c.ledger.Current(); buf != nil {
		return buf.Latent.Rounded(LatentDecimals)
	}
	return c.initial.Rounded(LatentDecimals)
}

// Status returns the load state.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Info describes the loaded decoder.
func (c *Controller) Info() (domain.ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == nil {
		return domain.ModelInfo{}, false
	}
	return c.model.Info(), true
}

// Snapshot is a consistent view for serializing to clients.
func (c *Controller) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		Status: c.Status(),
		Latent: c.initial.Rounded(LatentDecimals),
		Shape:  c.shape,
	}
	if buf := c.ledger.Current(); buf != nil {
		snap.Latent = buf.Latent.Rounded(LatentDecimals)
		snap.Seq = buf.Seq
		snap.Shape = buf.Shape
	}
	return snap
}

// Stats returns the ledger counters.
func (c *Controller) Stats() ledger.Stats {
	return c.ledger.Stats()
}

// LiveTensors is the number of tensors currently allocated by the pipeline.
func (c *Controller) LiveTensors() int64 {
	return c.pipeline.Allocator().Live()
}

// Close releases every frame and the model. Later hovers are inert, and so
// are hovers whose decode was still running.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	model := c.model
	c.model = nil
	c.mu.Unlock()

	c.ledger.Close()
	if model != nil {
		return model.Close()
	}
	return nil
}
