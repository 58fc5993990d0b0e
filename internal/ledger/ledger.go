// Package ledger tracks which pixel buffer is on screen and disposes the
// ones it replaces once the view has painted past them.
package ledger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/latentscope/internal/logging"
	"github.com/aretw0/latentscope/pkg/domain"
)

// Stats counts buffer movements through the ledger.
type Stats struct {
	Replaced  int `json:"replaced"`
	Disposed  int `json:"disposed"`
	Discarded int `json:"discarded"`
	Pending   int `json:"pending"`
}

type entry struct {
	buf    *domain.PixelBuffer
	doomed bool // painted past, waiting for its last reader
}

// Ledger owns the current buffer slot. At most one buffer is current; every
// buffer that enters the ledger is released exactly once.
type Ledger struct {
	mu      sync.Mutex
	current *domain.PixelBuffer
	pending []*entry
	pins    map[*domain.PixelBuffer]int
	closed  bool
	stats   Stats

	logger *slog.Logger
	hooks  domain.LifecycleHooks
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLifecycleHooks registers the OnDispose and OnDiscard callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(l *Ledger) {
		l.hooks = hooks
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		pins:   make(map[*domain.PixelBuffer]int),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Current returns the buffer on screen, or nil before the first frame.
// Use Acquire when the buffer is read concurrently with Painted.
func (l *Ledger) Current() *domain.PixelBuffer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Replace makes buf current unconditionally and returns the previous buffer,
// which stays readable until the next Painted or the next swap.
func (l *Ledger) Replace(buf *domain.PixelBuffer) *domain.PixelBuffer {
	if buf == nil {
		return nil
	}
	l.mu.Lock()
	if l.closed {
		l.stats.Discarded++
		l.mu.Unlock()
		l.discard(buf)
		return nil
	}
	old, free := l.swapLocked(buf)
	l.mu.Unlock()
	l.disposeAll(free)
	return old
}

// Offer makes buf current only if it comes from a newer request than the
// buffer on screen. A stale buffer was never visible and is released at once.
func (l *Ledger) Offer(buf *domain.PixelBuffer) bool {
	if buf == nil {
		return false
	}
	l.mu.Lock()
	if l.closed || (l.current != nil && buf.Seq <= l.current.Seq) {
		l.stats.Discarded++
		l.mu.Unlock()
		l.discard(buf)
		return false
	}
	_, free := l.swapLocked(buf)
	l.mu.Unlock()
	l.disposeAll(free)
	return true
}

// swapLocked makes buf current. Only the buffer it replaces waits for a
// paint: older pending buffers can no longer be on screen, so the unpinned
// ones are returned for release and the pinned ones go with their last
// reader. This bounds the queue when nothing ever paints.
func (l *Ledger) swapLocked(buf *domain.PixelBuffer) (old *domain.PixelBuffer, free []*domain.PixelBuffer) {
	var keep []*entry
	for _, e := range l.pending {
		if l.pins[e.buf] > 0 {
			e.doomed = true
			keep = append(keep, e)
			continue
		}
		free = append(free, e.buf)
	}
	l.pending = keep
	l.stats.Disposed += len(free)

	old = l.current
	l.current = buf
	if old != nil {
		l.pending = append(l.pending, &entry{buf: old})
		l.stats.Replaced++
	}
	return old, free
}

// Acquire pins the current buffer so Painted will not release it while the
// caller reads it. done must be called exactly once; buf may be nil.
func (l *Ledger) Acquire() (buf *domain.PixelBuffer, done func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	buf = l.current
	if buf == nil {
		return nil, func() {}
	}
	l.pins[buf]++

	var once sync.Once
	return buf, func() {
		once.Do(func() { l.unpin(buf) })
	}
}

func (l *Ledger) unpin(buf *domain.PixelBuffer) {
	l.mu.Lock()
	l.pins[buf]--
	if l.pins[buf] > 0 {
		l.mu.Unlock()
		return
	}
	delete(l.pins, buf)

	var release *domain.PixelBuffer
	for i, e := range l.pending {
		if e.buf == buf && e.doomed {
			release = buf
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			l.stats.Disposed++
			break
		}
	}
	l.mu.Unlock()

	if release != nil {
		l.dispose(release)
	}
}

// Painted is the view's post-paint acknowledgement: every superseded buffer
// is released, except those still pinned by Acquire, which go as soon as
// their last reader is done. The current buffer is never released here.
func (l *Ledger) Painted() int {
	l.mu.Lock()
	var (
		free []*domain.PixelBuffer
		keep []*entry
	)
	for _, e := range l.pending {
		if l.pins[e.buf] > 0 {
			e.doomed = true
			keep = append(keep, e)
			continue
		}
		free = append(free, e.buf)
	}
	l.pending = keep
	l.stats.Disposed += len(free)
	l.mu.Unlock()

	l.disposeAll(free)
	return len(free)
}

// Close releases every buffer the ledger holds, including the current one
// and pinned ones. Later offers are discarded.
func (l *Ledger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true

	var free []*domain.PixelBuffer
	for _, e := range l.pending {
		free = append(free, e.buf)
	}
	if l.current != nil {
		free = append(free, l.current)
	}
	l.pending = nil
	l.current = nil
	l.stats.Disposed += len(free)
	l.mu.Unlock()

	l.disposeAll(free)
}

// Stats returns a snapshot of the counters.
func (l *Ledger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Pending = len(l.pending)
	return s
}

func (l *Ledger) disposeAll(bufs []*domain.PixelBuffer) {
	for _, buf := range bufs {
		l.dispose(buf)
	}
}

func (l *Ledger) dispose(buf *domain.PixelBuffer) {
	if err := buf.Release(); err != nil {
		l.logger.Error("buffer released twice", "seq", buf.Seq, "err", err)
		return
	}
	if l.hooks.OnDispose != nil {
		l.hooks.OnDispose(context.Background(), &domain.BufferEvent{
			EventBase: domain.NewEventBase(domain.EventDispose),
			Seq:       buf.Seq,
			Latent:    buf.Latent,
		})
	}
}

func (l *Ledger) discard(buf *domain.PixelBuffer) {
	l.logger.Debug("discarding stale frame", "seq", buf.Seq, "latent", buf.Latent)
	if err := buf.Release(); err != nil {
		l.logger.Error("buffer released twice", "seq", buf.Seq, "err", err)
		return
	}
	if l.hooks.OnDiscard != nil {
		l.hooks.OnDiscard(context.Background(), &domain.BufferEvent{
			EventBase: domain.NewEventBase(domain.EventDiscard),
			Seq:       buf.Seq,
			Latent:    buf.Latent,
		})
	}
}
