// Package tensor provides tracked float32 buffers for the decode path.
//
// Every buffer comes from an Allocator, which recycles backing slices of equal
// length and keeps a live count. The count is how the decode pipeline proves it
// released every intermediate it created.
package tensor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrReleased is returned when a tensor is released twice.
var ErrReleased = errors.New("tensor already released")

// Tensor is a row-major float32 buffer with a shape.
type Tensor struct {
	id       uint64
	shape    []int
	data     []float32
	alloc    *Allocator
	released atomic.Bool
}

// ID is unique per allocation within its allocator.
func (t *Tensor) ID() uint64 { return t.id }

// Shape returns a copy of the dimensions.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Len is the number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Data returns the backing slice. It must not be used after Release.
func (t *Tensor) Data() []float32 { return t.data }

// Released reports whether the tensor was handed back.
func (t *Tensor) Released() bool { return t.released.Load() }

// Release returns the backing slice to the allocator.
func (t *Tensor) Release() error {
	if !t.released.CompareAndSwap(false, true) {
		return fmt.Errorf("tensor %d: %w", t.id, ErrReleased)
	}
	t.alloc.put(t)
	return nil
}

// Stats is a point-in-time view of an allocator.
type Stats struct {
	Allocated uint64 // tensors handed out
	Released  uint64 // tensors handed back
	Reused    uint64 // allocations served from a recycled slice
}

// Live is the number of tensors not yet released.
func (s Stats) Live() int64 {
	return int64(s.Allocated) - int64(s.Released)
}

// Allocator hands out tensors and recycles their memory.
// Safe for concurrent use.
type Allocator struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool

	nextID    atomic.Uint64
	allocated atomic.Uint64
	released  atomic.Uint64
	reused    atomic.Uint64
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{pools: make(map[int]*sync.Pool)}
}

// New returns a zeroed tensor of the given shape.
func (a *Allocator) New(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		if d < 0 {
			panic(fmt.Sprintf("tensor: negative dimension in %v", shape))
		}
		n *= d
	}

	data, recycled := a.pool(n).Get().(*[]float32)
	var buf []float32
	if recycled && data != nil {
		buf = *data
		clear(buf)
		a.reused.Add(1)
	} else {
		buf = make([]float32, n)
	}

	a.allocated.Add(1)
	return &Tensor{
		id:    a.nextID.Add(1),
		shape: append([]int(nil), shape...),
		data:  buf,
		alloc: a,
	}
}

// FromSlice returns a tensor holding a copy of values.
func (a *Allocator) FromSlice(values []float32, shape ...int) (*Tensor, error) {
	t := a.New(shape...)
	if t.Len() != len(values) {
		_ = t.Release()
		return nil, fmt.Errorf("tensor: %d values do not fit shape %v", len(values), shape)
	}
	copy(t.data, values)
	return t, nil
}

// Stats returns the allocator counters.
func (a *Allocator) Stats() Stats {
	return Stats{
		Allocated: a.allocated.Load(),
		Released:  a.released.Load(),
		Reused:    a.reused.Load(),
	}
}

// Live is the number of tensors currently held by callers.
func (a *Allocator) Live() int64 {
	return a.Stats().Live()
}

func (a *Allocator) pool(n int) *sync.Pool {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pools[n]
	if !ok {
		p = &sync.Pool{}
		a.pools[n] = p
	}
	return p
}

func (a *Allocator) put(t *Tensor) {
	a.released.Add(1)
	data := t.data
	a.pool(len(data)).Put(&data)
}
