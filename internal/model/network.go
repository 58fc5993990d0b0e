package model

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/tensor"
)

// ErrClosed is returned by Predict after Close.
var ErrClosed = errors.New("network closed")

// Network is a compiled decoder. It implements ports.Decoder.
type Network struct {
	info   domain.ModelInfo
	layers []Layer
	closed atomic.Bool
}

// NewNetwork assembles a network. info.OutputShape must match the size of the
// last layer's output; the compiler guarantees it.
func NewNetwork(info domain.ModelInfo, layers []Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, errors.New("network has no layers")
	}
	if !info.OutputShape.Valid() {
		return nil, fmt.Errorf("invalid output shape %s", info.OutputShape)
	}
	info.Layers = make([]domain.LayerInfo, len(layers))
	for i, l := range layers {
		info.Layers[i] = l.Info()
	}
	return &Network{info: info, layers: layers}, nil
}

// Info describes the network.
func (n *Network) Info() domain.ModelInfo {
	info := n.info
	info.Layers = append([]domain.LayerInfo(nil), n.info.Layers...)
	return info
}

// OutputShape is the display grid.
func (n *Network) OutputShape() domain.Shape {
	return n.info.OutputShape
}

// Predict runs the layers in order. Each intermediate activation is released
// as soon as the next layer has consumed it; the input stays owned by the caller.
func (n *Network) Predict(_ context.Context, alloc *tensor.Allocator, input *tensor.Tensor) (*tensor.Tensor, error) {
	if n.closed.Load() {
		return nil, ErrClosed
	}
	if input.Len() != n.info.InputDim {
		return nil, fmt.Errorf("input has %d values, decoder expects %d", input.Len(), n.info.InputDim)
	}

	cur := input
	for i, l := range n.layers {
		next, err := l.Forward(alloc, cur)
		if cur != input {
			_ = cur.Release()
		}
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, l.Info().Name, err)
		}
		cur = next
	}
	return cur, nil
}

// Close marks the network unusable. Weights are left to the garbage collector.
func (n *Network) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}
