package runtime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/latentscope/internal/loader"
	"github.com/aretw0/latentscope/internal/runtime"
	"github.com/aretw0/latentscope/internal/testutils"
	"github.com/aretw0/latentscope/pkg/adapters/memory"
	"github.com/aretw0/latentscope/pkg/adapters/remote"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
	"github.com/aretw0/latentscope/pkg/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelPath = "models/generatorjs/model.json"

func newController(t *testing.T, opts ...runtime.Option) *runtime.Controller {
	t.Helper()
	fx := testutils.BuildDecoder(t, testutils.DefaultDecoder())
	ctrl := runtime.NewController(loader.New(fx.Source(modelPath)), modelPath, opts...)
	t.Cleanup(func() { _ = ctrl.Close() })
	return ctrl
}

func TestController_Lifecycle(t *testing.T) {
	var transitions []string
	hooks := domain.LifecycleHooks{
		OnStateChange: func(_ context.Context, e *domain.StateEvent) {
			transitions = append(transitions, string(e.From)+"->"+string(e.To))
		},
	}
	ctrl := newController(t, runtime.WithLifecycleHooks(hooks))
	ctx := context.Background()

	assert.Equal(t, domain.StateUninitialized, ctrl.Status().State)
	assert.Nil(t, ctrl.Current())

	require.NoError(t, ctrl.Start(ctx))
	assert.Equal(t, domain.StateReady, ctrl.Status().State)
	assert.Equal(t, []string{"uninitialized->loading", "loading->ready"}, transitions)

	// The initial frame is decoded on Ready.
	cur := ctrl.Current()
	require.NotNil(t, cur)
	assert.Equal(t, uint64(1), cur.Seq)
	assert.Equal(t, domain.DefaultLatent, cur.Latent)
	assert.Equal(t, domain.DefaultShape, cur.Shape)

	// No reload.
	assert.ErrorIs(t, ctrl.Start(ctx), domain.ErrAlreadyStarted)
	assert.Len(t, transitions, 2)

	info, ok := ctrl.Info()
	assert.True(t, ok)
	assert.Equal(t, "generatorjs", info.Name)
}

func TestController_NotFound(t *testing.T) {
	var transitions []domain.LoadState
	ctrl := runtime.NewController(loader.New(memory.NewSource(nil)), modelPath,
		runtime.WithLifecycleHooks(domain.LifecycleHooks{
			OnStateChange: func(_ context.Context, e *domain.StateEvent) {
				transitions = append(transitions, e.To)
			},
		}))
	defer ctrl.Close()
	ctx := context.Background()

	err := ctrl.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	status := ctrl.Status()
	assert.Equal(t, domain.StateFailed, status.State)
	assert.Equal(t, domain.LoadNotFound, status.Reason)
	assert.Equal(t, []domain.LoadState{domain.StateLoading, domain.StateFailed}, transitions)

	// Interactions are inert.
	accepted, err := ctrl.Hover(ctx, domain.Cursor{X: 1, Y: 1})
	assert.NoError(t, err)
	assert.False(t, accepted)
	assert.Nil(t, ctrl.Current())

	// Failed is terminal.
	assert.ErrorIs(t, ctrl.Start(ctx), domain.ErrAlreadyStarted)
	assert.Equal(t, domain.StateFailed, ctrl.Status().State)
}

func TestController_RemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	src := remote.NewSource(remote.WithClient(srv.Client()))
	ctrl := runtime.NewController(loader.New(src), srv.URL+"/models/generatorjs/model.json")
	defer ctrl.Close()
	ctx := context.Background()

	err := ctrl.Start(ctx)
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	assert.Equal(t, domain.StateFailed, ctrl.Status().State)
	assert.Equal(t, domain.LoadNotFound, ctrl.Status().Reason)

	accepted, err := ctrl.Hover(ctx, domain.Cursor{X: 1, Y: 1})
	assert.NoError(t, err)
	assert.False(t, accepted)
	assert.Nil(t, ctrl.Current())
	assert.Equal(t, int64(0), ctrl.LiveTensors())
}

func TestController_ParseFailure(t *testing.T) {
	src := memory.NewSource(map[string][]byte{modelPath: []byte("not json")})
	ctrl := runtime.NewController(loader.New(src), modelPath)
	defer ctrl.Close()

	err := ctrl.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrArtifactParse)
	assert.Equal(t, domain.LoadParse, ctrl.Status().Reason)
}

func TestController_BeforeReady(t *testing.T) {
	shape := domain.Shape{Rows: 5, Cols: 5}
	ctrl := newController(t, runtime.WithShape(shape))
	ctx := context.Background()

	accepted, err := ctrl.Hover(ctx, domain.Cursor{})
	assert.NoError(t, err)
	assert.False(t, accepted)

	buf, err := ctrl.Decode(ctx, domain.LatentVector{X: 1, Y: 2})
	require.NoError(t, err)
	assert.True(t, buf.Equal(domain.Blank(shape)))
	require.NoError(t, buf.Release())

	snap := ctrl.Snapshot()
	assert.Equal(t, domain.StateUninitialized, snap.Status.State)
	assert.Equal(t, shape, snap.Shape)
	assert.Equal(t, domain.DefaultLatent, snap.Latent)
}

func TestController_HoverSequence(t *testing.T) {
	var disposed []uint64
	ctrl := newController(t, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnDispose: func(_ context.Context, e *domain.BufferEvent) {
			disposed = append(disposed, e.Seq)
		},
	}))
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))
	ctrl.Painted()

	for _, c := range []domain.Cursor{{X: -2.5, Y: -2.5}, {X: 0, Y: 0}, {X: 2.5, Y: 2.5}} {
		accepted, err := ctrl.Hover(ctx, c)
		require.NoError(t, err)
		require.True(t, accepted)
		ctrl.Painted()
	}

	want, err := ctrl.Decode(ctx, domain.LatentVector{X: 2.5, Y: 2.5})
	require.NoError(t, err)
	defer want.Release()

	assert.True(t, ctrl.Current().Equal(want), "displayed frame must be decode(2.5, 2.5)")
	assert.Equal(t, domain.LatentVector{X: 2.5, Y: 2.5}, ctrl.Latent())

	// The initial frame plus the first two hover frames.
	assert.Equal(t, []uint64{1, 2, 3}, disposed)
	stats := ctrl.Stats()
	assert.Equal(t, 3, stats.Disposed)
	assert.Equal(t, 0, stats.Pending)
}

func TestController_HoverWithoutPaint(t *testing.T) {
	ctrl := newController(t)
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))

	const n = 500
	for i := 0; i < n; i++ {
		accepted, err := ctrl.Hover(ctx, domain.Cursor{X: float64(i%9) - 4, Y: float64(i%7) - 3})
		require.NoError(t, err)
		require.True(t, accepted)
	}

	// The current frame plus the one it replaced.
	assert.LessOrEqual(t, ctrl.LiveTensors(), int64(3))
	stats := ctrl.Stats()
	assert.Equal(t, n, stats.Replaced)
	assert.Equal(t, n-1, stats.Disposed)
	assert.Equal(t, 1, stats.Pending)

	require.NoError(t, ctrl.Close())
	assert.Equal(t, int64(0), ctrl.LiveTensors())
}

func TestController_LatentRounding(t *testing.T) {
	ctrl := newController(t)
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))

	_, err := ctrl.Hover(ctx, domain.Cursor{X: 0.123456, Y: -1.98765})
	require.NoError(t, err)
	assert.Equal(t, domain.LatentVector{X: 0.123, Y: -1.988}, ctrl.Latent())
	assert.Equal(t, uint64(2), ctrl.Snapshot().Seq)
}

func TestController_CloseReleasesEverything(t *testing.T) {
	ctrl := newController(t)
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))

	for i := 0; i < 4; i++ {
		_, err := ctrl.Hover(ctx, domain.Cursor{X: float64(i), Y: 0})
		require.NoError(t, err)
	}
	assert.Greater(t, ctrl.LiveTensors(), int64(1))

	require.NoError(t, ctrl.Close())
	assert.Equal(t, int64(0), ctrl.LiveTensors())
	assert.Nil(t, ctrl.Current())

	accepted, err := ctrl.Hover(ctx, domain.Cursor{})
	assert.NoError(t, err)
	assert.False(t, accepted)
	assert.NoError(t, ctrl.Close())
}

// gatedDecoder blocks Predict for latents with X == gateX until release is closed.
type gatedDecoder struct {
	gateX   float32
	entered chan struct{}
	release chan struct{}
	fault   error
}

func (d *gatedDecoder) Info() domain.ModelInfo {
	return domain.ModelInfo{Name: "gated", Digest: "gated", InputDim: 2, OutputShape: d.OutputShape()}
}

func (d *gatedDecoder) OutputShape() domain.Shape { return domain.Shape{Rows: 1, Cols: 2} }

func (d *gatedDecoder) Predict(_ context.Context, alloc *tensor.Allocator, input *tensor.Tensor) (*tensor.Tensor, error) {
	in := input.Data()
	if d.fault != nil && in[0] < 0 {
		return nil, d.fault
	}
	if in[0] == d.gateX {
		close(d.entered)
		<-d.release
	}
	out := alloc.New(1, 2)
	copy(out.Data(), []float32{in[0] / 10, in[1] / 10})
	return out, nil
}

func (d *gatedDecoder) Close() error { return nil }

// closingDecoder fails an in-flight Predict once Close has run.
type closingDecoder struct {
	gatedDecoder
	mu     sync.Mutex
	closed bool
}

var errDecoderClosed = errors.New("decoder closed")

func (d *closingDecoder) Predict(ctx context.Context, alloc *tensor.Allocator, input *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := d.gatedDecoder.Predict(ctx, alloc, input)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		if out != nil {
			_ = out.Release()
		}
		return nil, errDecoderClosed
	}
	return out, err
}

func (d *closingDecoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type stubLoader struct {
	dec ports.Decoder
}

func (l stubLoader) Load(context.Context, string) (ports.Decoder, error) { return l.dec, nil }

func TestController_OutOfOrderCompletion(t *testing.T) {
	dec := &gatedDecoder{gateX: 1, entered: make(chan struct{}), release: make(chan struct{})}
	var discarded []uint64
	ctrl := runtime.NewController(stubLoader{dec}, "gated", runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnDiscard: func(_ context.Context, e *domain.BufferEvent) {
			discarded = append(discarded, e.Seq)
		},
	}))
	defer ctrl.Close()
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))

	var (
		wg         sync.WaitGroup
		slowResult bool
		slowErr    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowResult, slowErr = ctrl.Hover(ctx, domain.Cursor{X: 1, Y: 1})
	}()

	select {
	case <-dec.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("slow decode never started")
	}

	// The newer request finishes first and wins.
	accepted, err := ctrl.Hover(ctx, domain.Cursor{X: 2, Y: 2})
	require.NoError(t, err)
	assert.True(t, accepted)

	close(dec.release)
	wg.Wait()
	require.NoError(t, slowErr)
	assert.False(t, slowResult, "older request must not overwrite the newer frame")

	assert.Equal(t, domain.LatentVector{X: 2, Y: 2}, ctrl.Current().Latent)
	assert.Equal(t, []uint64{2}, discarded)

	ctrl.Painted()
	require.NoError(t, ctrl.Close())
	assert.Equal(t, int64(0), ctrl.LiveTensors())
}

func TestController_HoverDuringClose(t *testing.T) {
	dec := &closingDecoder{gatedDecoder: gatedDecoder{gateX: 1, entered: make(chan struct{}), release: make(chan struct{})}}
	ctrl := runtime.NewController(stubLoader{dec}, "gated")
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))

	type result struct {
		accepted bool
		err      error
	}
	done := make(chan result, 1)
	go func() {
		accepted, err := ctrl.Hover(ctx, domain.Cursor{X: 1, Y: 1})
		done <- result{accepted, err}
	}()

	select {
	case <-dec.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("decode never started")
	}
	require.NoError(t, ctrl.Close())
	close(dec.release)

	res := <-done
	assert.NoError(t, res.err, "a decode cut short by Close is not a fault")
	assert.False(t, res.accepted)
	assert.Equal(t, int64(0), ctrl.LiveTensors())
}

func TestController_BackendFaultPropagates(t *testing.T) {
	boom := errors.New("device lost")
	dec := &gatedDecoder{gateX: 99, entered: make(chan struct{}), release: make(chan struct{}), fault: boom}
	ctrl := runtime.NewController(stubLoader{dec}, "gated", runtime.WithInitialLatent(domain.LatentVector{X: 0, Y: 0}))
	defer ctrl.Close()
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx))

	_, err := ctrl.Hover(ctx, domain.Cursor{X: -1, Y: 0})
	assert.ErrorIs(t, err, boom)

	// The previous frame is still on screen.
	assert.Equal(t, uint64(1), ctrl.Current().Seq)
	assert.Equal(t, int64(1), ctrl.LiveTensors())
}
